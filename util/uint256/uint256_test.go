package uint256

import (
	"strings"
	"testing"
)

func TestFromValidHex(t *testing.T) {
	obj, err := FromHex("42" + strings.Repeat("0", 60) + "aF")
	if err != nil {
		t.Fatalf("FromHex: unexpected error: %v", err)
	}

	data := obj.CloneBytes()
	if data[0] != 0x42 {
		t.Errorf("first byte is %#x, want 0x42", data[0])
	}
	for i := 1; i < Size-1; i++ {
		if data[i] != 0x00 {
			t.Errorf("byte %d is %#x, want 0x00", i, data[i])
		}
	}
	if data[Size-1] != 0xAF {
		t.Errorf("last byte is %#x, want 0xaf", data[Size-1])
	}
}

func TestFromInvalidHex(t *testing.T) {
	invalid := []string{
		"",
		"00",
		strings.Repeat("0", 66),
		"xx" + strings.Repeat("0", 62),
		strings.Repeat("0", 63) + "g",
	}
	for _, s := range invalid {
		if _, err := FromHex(s); err == nil {
			t.Errorf("FromHex(%q): expected error, got nil", s)
		}
	}
}

func TestHexRoundTrip(t *testing.T) {
	// The exact bytes for FromHex are verified above, so the round-trip also
	// verifies Hex rather than just consistency of the pair.
	hexStr := "02" + strings.Repeat("0", 60) + "af"

	obj, err := FromHex(hexStr)
	if err != nil {
		t.Fatalf("FromHex: unexpected error: %v", err)
	}
	if got := obj.Hex(); got != hexStr {
		t.Errorf("Hex: got %q, want %q", got, hexStr)
	}

	// Uppercase input must produce the same value with lowercase output.
	upper, err := FromHex(strings.ToUpper(hexStr))
	if err != nil {
		t.Fatalf("FromHex (upper): unexpected error: %v", err)
	}
	if upper != obj {
		t.Error("uppercase input decoded to a different value")
	}
}

func TestFromBytes(t *testing.T) {
	raw := make([]byte, Size)
	raw[0] = 0xff
	obj, err := FromBytes(raw)
	if err != nil {
		t.Fatalf("FromBytes: unexpected error: %v", err)
	}
	if obj.Hex() != "ff"+strings.Repeat("0", 62) {
		t.Errorf("FromBytes produced wrong value: %s", obj.Hex())
	}

	if _, err := FromBytes(make([]byte, Size-1)); err == nil {
		t.Error("FromBytes accepted a short slice")
	}
	if _, err := FromBytes(make([]byte, Size+1)); err == nil {
		t.Error("FromBytes accepted a long slice")
	}
}

func TestComparison(t *testing.T) {
	low1, err := FromHex(strings.Repeat("0", 62) + "ff")
	if err != nil {
		t.Fatal(err)
	}
	low2, err := FromHex(strings.Repeat("0", 62) + "ff")
	if err != nil {
		t.Fatal(err)
	}
	high, err := FromHex("ff" + strings.Repeat("0", 62))
	if err != nil {
		t.Fatal(err)
	}

	if low1 != low2 {
		t.Error("equal values compare unequal")
	}
	if low1 == high {
		t.Error("distinct values compare equal")
	}

	if !low1.Less(high) {
		t.Error("low < high should hold")
	}
	if low1.Less(low2) {
		t.Error("low < low should not hold")
	}
	if high.Less(low1) {
		t.Error("high < low should not hold")
	}

	if low1.Cmp(high) != -1 || high.Cmp(low1) != 1 || low1.Cmp(low2) != 0 {
		t.Error("Cmp results inconsistent with Less")
	}
}
