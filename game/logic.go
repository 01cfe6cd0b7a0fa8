package game

import (
	"encoding/json"

	"github.com/gamestatenet/gamestated/util/uint256"
)

// Chain selects the network a game daemon follows.
type Chain int

// The supported networks.
const (
	ChainMain Chain = iota
	ChainTest
	ChainRegtest
)

// String returns the canonical name of the chain.
func (c Chain) String() string {
	switch c {
	case ChainMain:
		return "main"
	case ChainTest:
		return "test"
	case ChainRegtest:
		return "regtest"
	default:
		return "unknown"
	}
}

// GameStateData is a game state as an opaque byte string. Its contents are
// defined entirely by the GameLogic that produces it; the framework only
// stores and passes it around.
type GameStateData []byte

// UndoData is the opaque byte string a GameLogic emits while processing a
// block forward, sufficient to undo that block later.
type UndoData []byte

// GameLogic defines how a game's state reacts to blocks. Implementations are
// supplied by the integrating game; the daemon drives them as attach and
// detach notifications arrive.
//
// The central correctness requirement is exact reversibility: for every state
// s and block b accepted by ProcessForward,
//
//	ProcessBackwards(newState, b, undoData) == s
//
// byte for byte, where newState and undoData are the outputs of
// ProcessForward(s, b). Chain reorganizations are handled by unwinding blocks
// through ProcessBackwards and reapplying others, never by replaying from
// scratch, so a logic that violates this equation corrupts its game state.
//
// All three processing methods must be pure functions of their explicit
// inputs (plus the configured chain). An error return from any of them is
// fatal to the daemon: there is no degraded mode in which a block is applied
// partially or without undo data.
type GameLogic interface {
	// SetChain tells the logic which network it is running on. The daemon
	// calls this once before any other method.
	SetChain(chain Chain)

	// GetInitialState returns the state the game starts from together with
	// the height and hash of the block it corresponds to. The result must be
	// deterministic for the configured chain.
	GetInitialState() (state GameStateData, height uint64, blockHash uint256.Uint256, err error)

	// ProcessForward computes the state after applying blockData on top of
	// oldState, and the undo data needed to unwind it again.
	ProcessForward(oldState GameStateData, blockData json.RawMessage) (newState GameStateData, undo UndoData, err error)

	// ProcessBackwards reconstructs the exact state ProcessForward consumed
	// when it produced newState and undo for the same blockData.
	ProcessBackwards(newState GameStateData, blockData json.RawMessage, undo UndoData) (oldState GameStateData, err error)
}
