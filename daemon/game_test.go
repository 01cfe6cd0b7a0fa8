package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/gamestatenet/gamestated/game"
	"github.com/gamestatenet/gamestated/storage"
	"github.com/gamestatenet/gamestated/util/uint256"
)

const testGameID = "testgame"

// countingLogic is a minimal game logic for engine tests: the state is a
// JSON counter incremented once per attached block, and the undo data is
// simply the previous state.
type countingLogic struct {
	chain game.Chain
}

func (l *countingLogic) SetChain(chain game.Chain) {
	l.chain = chain
}

func (l *countingLogic) GetInitialState() (game.GameStateData, uint64, uint256.Uint256, error) {
	hash, err := uint256.FromHex(blockHex(0))
	if err != nil {
		return nil, 0, uint256.Uint256{}, err
	}
	return game.GameStateData(`{"count":0}`), 0, hash, nil
}

func (l *countingLogic) ProcessForward(oldState game.GameStateData,
	blockData json.RawMessage) (game.GameStateData, game.UndoData, error) {

	var state struct {
		Count int `json:"count"`
	}
	err := json.Unmarshal(oldState, &state)
	if err != nil {
		return nil, nil, err
	}
	newState := fmt.Sprintf(`{"count":%d}`, state.Count+1)
	return game.GameStateData(newState), game.UndoData(oldState), nil
}

func (l *countingLogic) ProcessBackwards(newState game.GameStateData,
	blockData json.RawMessage, undo game.UndoData) (game.GameStateData, error) {

	return game.GameStateData(undo), nil
}

var _ game.GameLogic = (*countingLogic)(nil)
var _ game.BlockListener = (*Game)(nil)

// blockHex builds a distinct valid block hash from a single byte.
func blockHex(b byte) string {
	return fmt.Sprintf("%02x", b) + strings.Repeat("0", 62)
}

func notification(hash, parent byte, height uint64) json.RawMessage {
	payload := fmt.Sprintf(`{"block":{"hash":%q,"parent":%q,"height":%d}}`,
		blockHex(hash), blockHex(parent), height)
	return json.RawMessage(payload)
}

func newTestGame(t *testing.T, pruningDepth int) *Game {
	store := storage.NewMemoryStorage()
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	g := NewGame(testGameID, game.ChainRegtest, &countingLogic{}, store, pruningDepth)
	if err := g.InitializeState(); err != nil {
		t.Fatalf("InitializeState: %v", err)
	}
	return g
}

func checkPosition(t *testing.T, g *Game, wantHash byte, wantHeight uint64) {
	t.Helper()
	current, ok, err := g.CurrentBlock()
	if err != nil {
		t.Fatalf("CurrentBlock: %v", err)
	}
	if !ok {
		t.Fatal("CurrentBlock: no stored state")
	}
	if current.Hash.Hex() != blockHex(wantHash) || current.Height != wantHeight {
		t.Errorf("position: got height %d (%s), want height %d (%s)",
			current.Height, current.Hash, wantHeight, blockHex(wantHash))
	}
}

func checkState(t *testing.T, g *Game, want string) {
	t.Helper()
	state, err := g.store.GetCurrentGameState()
	if err != nil {
		t.Fatalf("GetCurrentGameState: %v", err)
	}
	if !bytes.Equal(state, []byte(want)) {
		t.Errorf("state: got %s, want %s", state, want)
	}
}

func expectPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Error("expected a panic")
		}
	}()
	f()
}

func TestInitializeState(t *testing.T) {
	g := newTestGame(t, -1)
	checkPosition(t, g, 0, 0)
	checkState(t, g, `{"count":0}`)
	if g.IsOutOfSync() {
		t.Error("IsOutOfSync: true after initialization")
	}

	// A second initialization resumes from the stored state.
	if err := g.InitializeState(); err != nil {
		t.Fatalf("InitializeState (again): %v", err)
	}
	checkPosition(t, g, 0, 0)
}

func TestAttachDetachRoundTrip(t *testing.T) {
	g := newTestGame(t, -1)

	g.BlockAttach(testGameID, notification(1, 0, 1), false)
	checkPosition(t, g, 1, 1)
	checkState(t, g, `{"count":1}`)

	g.BlockAttach(testGameID, notification(2, 1, 2), false)
	checkPosition(t, g, 2, 2)
	checkState(t, g, `{"count":2}`)

	g.BlockDetach(testGameID, notification(2, 1, 2), false)
	checkPosition(t, g, 1, 1)
	checkState(t, g, `{"count":1}`)

	g.BlockDetach(testGameID, notification(1, 0, 1), false)
	checkPosition(t, g, 0, 0)
	checkState(t, g, `{"count":0}`)
	if g.IsOutOfSync() {
		t.Error("IsOutOfSync: true after a clean round trip")
	}
}

func TestReorg(t *testing.T) {
	g := newTestGame(t, -1)

	g.BlockAttach(testGameID, notification(1, 0, 1), false)
	g.BlockAttach(testGameID, notification(2, 1, 2), false)

	// Switch to a competing branch of the same length.
	g.BlockDetach(testGameID, notification(2, 1, 2), false)
	g.BlockDetach(testGameID, notification(1, 0, 1), false)
	g.BlockAttach(testGameID, notification(11, 0, 1), false)
	g.BlockAttach(testGameID, notification(12, 11, 2), false)

	checkPosition(t, g, 12, 2)
	checkState(t, g, `{"count":2}`)
	if g.IsOutOfSync() {
		t.Error("IsOutOfSync: true after a reorg")
	}
}

func TestSequenceMismatchMarksOutOfSync(t *testing.T) {
	g := newTestGame(t, -1)
	g.BlockAttach(testGameID, notification(1, 0, 1), false)

	g.BlockAttach(testGameID, notification(2, 1, 2), true)
	if !g.IsOutOfSync() {
		t.Fatal("IsOutOfSync: false after a sequence mismatch")
	}

	// Further notifications must not touch the state.
	g.BlockAttach(testGameID, notification(2, 1, 2), false)
	g.BlockDetach(testGameID, notification(1, 0, 1), false)
	checkPosition(t, g, 1, 1)
	checkState(t, g, `{"count":1}`)
}

func TestBrokenLinkageMarksOutOfSync(t *testing.T) {
	g := newTestGame(t, -1)
	g.BlockAttach(testGameID, notification(1, 0, 1), false)

	// The attached block does not build on the current one.
	g.BlockAttach(testGameID, notification(3, 2, 3), false)
	if !g.IsOutOfSync() {
		t.Error("IsOutOfSync: false after attaching a non-extending block")
	}
	checkPosition(t, g, 1, 1)
}

func TestDetachOfWrongBlockMarksOutOfSync(t *testing.T) {
	g := newTestGame(t, -1)
	g.BlockAttach(testGameID, notification(1, 0, 1), false)

	g.BlockDetach(testGameID, notification(2, 1, 2), false)
	if !g.IsOutOfSync() {
		t.Error("IsOutOfSync: false after detaching a block that is not current")
	}
	checkPosition(t, g, 1, 1)
}

func TestReinitialize(t *testing.T) {
	g := newTestGame(t, -1)
	g.BlockAttach(testGameID, notification(1, 0, 1), false)
	g.BlockAttach(testGameID, notification(2, 1, 2), true)
	if !g.IsOutOfSync() {
		t.Fatal("IsOutOfSync: false after a sequence mismatch")
	}

	if err := g.Reinitialize(); err != nil {
		t.Fatalf("Reinitialize: %v", err)
	}
	if g.IsOutOfSync() {
		t.Error("IsOutOfSync: true after Reinitialize")
	}
	checkPosition(t, g, 0, 0)
	checkState(t, g, `{"count":0}`)

	// The engine applies notifications again.
	g.BlockAttach(testGameID, notification(1, 0, 1), false)
	checkPosition(t, g, 1, 1)
}

func TestPruning(t *testing.T) {
	g := newTestGame(t, 1)

	for i := byte(1); i <= 3; i++ {
		g.BlockAttach(testGameID, notification(i, i-1, uint64(i)), false)
	}

	// Only the most recent block's undo data survives.
	hash3, err := uint256.FromHex(blockHex(3))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := g.store.GetUndoData(hash3); !ok {
		t.Error("undo data for the current block was pruned")
	}
	hash2, err := uint256.FromHex(blockHex(2))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := g.store.GetUndoData(hash2); ok {
		t.Error("undo data below the pruning depth was kept")
	}

	// Detaching the most recent block still works.
	g.BlockDetach(testGameID, notification(3, 2, 3), false)
	checkPosition(t, g, 2, 2)

	// Detaching deeper than the pruning depth cannot be handled.
	expectPanic(t, func() {
		g.BlockDetach(testGameID, notification(2, 1, 2), false)
	})
}

func TestMalformedNotificationPanics(t *testing.T) {
	g := newTestGame(t, -1)

	expectPanic(t, func() {
		g.BlockAttach(testGameID, json.RawMessage(`{"nonsense":true}`), false)
	})
	expectPanic(t, func() {
		payload := fmt.Sprintf(`{"block":{"hash":"xyz","parent":%q,"height":1}}`, blockHex(0))
		g.BlockAttach(testGameID, json.RawMessage(payload), false)
	})
}
