package config

import (
	"testing"

	"github.com/gamestatenet/gamestated/game"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("test", []string{"--nodezmq", "tcp://127.0.0.1:28555"})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Chain != game.ChainMain {
		t.Errorf("Chain: got %s, want main", cfg.Chain)
	}
	if cfg.PruningDepth != -1 {
		t.Errorf("PruningDepth: got %d, want -1", cfg.PruningDepth)
	}
	if cfg.DebugLevel != "info" {
		t.Errorf("DebugLevel: got %q, want info", cfg.DebugLevel)
	}
	if cfg.DataDir == "" || cfg.LogDir == "" {
		t.Error("DataDir/LogDir not resolved")
	}
}

func TestLoadConfigNetworkSelection(t *testing.T) {
	cfg, err := LoadConfig("test", []string{"--nodezmq", "tcp://x", "--testnet"})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Chain != game.ChainTest {
		t.Errorf("Chain: got %s, want test", cfg.Chain)
	}

	cfg, err = LoadConfig("test", []string{"--nodezmq", "tcp://x", "--regtest"})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Chain != game.ChainRegtest {
		t.Errorf("Chain: got %s, want regtest", cfg.Chain)
	}

	if _, err := LoadConfig("test", []string{"--nodezmq", "tcp://x", "--testnet", "--regtest"}); err == nil {
		t.Error("LoadConfig accepted --testnet together with --regtest")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	if _, err := LoadConfig("test", nil); err == nil {
		t.Error("LoadConfig accepted a missing --nodezmq")
	}
	if _, err := LoadConfig("test", []string{"--nodezmq", "tcp://x", "-d", "nonsense"}); err == nil {
		t.Error("LoadConfig accepted an invalid debug level")
	}
}
