package storage

import (
	"github.com/gamestatenet/gamestated/game"
	"github.com/gamestatenet/gamestated/util/uint256"
)

// CurrentBlock is the chain position the stored game state corresponds to.
type CurrentBlock struct {
	Hash   uint256.Uint256
	Height uint64
}

// Storage persists a game's derived state together with the undo data of the
// blocks that produced it. The framework treats both as opaque byte strings;
// implementations never interpret their contents.
//
// All methods are safe for the access pattern of the daemon: one writer (the
// engine, on the subscriber's receive goroutine) plus concurrent readers
// (status queries).
type Storage interface {
	// Initialize prepares the storage for use and must be called before any
	// other method.
	Initialize() error

	// Close releases the storage's resources.
	Close() error

	// GetCurrentBlock returns the block the current game state corresponds
	// to. ok is false when no state has been stored yet.
	GetCurrentBlock() (current CurrentBlock, ok bool, err error)

	// GetCurrentGameState returns the stored game state. It is only valid to
	// call when GetCurrentBlock reports ok.
	GetCurrentGameState() (game.GameStateData, error)

	// SetCurrentState atomically replaces the current game state and the
	// block position it corresponds to.
	SetCurrentState(hash uint256.Uint256, height uint64, state game.GameStateData) error

	// AddUndoData stores the undo data for the block with the given hash.
	AddUndoData(hash uint256.Uint256, height uint64, undo game.UndoData) error

	// GetUndoData returns the undo data stored for the given block. ok is
	// false when none is stored, which is not an error: the data may have
	// been pruned.
	GetUndoData(hash uint256.Uint256) (undo game.UndoData, ok bool, err error)

	// ReleaseUndoData drops the undo data for the given block, typically
	// after it has been consumed by a detach. Releasing data that is not
	// stored is a no-op.
	ReleaseUndoData(hash uint256.Uint256) error

	// PruneUndoData drops the undo data of every block at maxHeight or
	// below. Blocks pruned this way can no longer be detached.
	PruneUndoData(maxHeight uint64) error

	// Clear removes everything, returning the storage to its initial empty
	// state. Used when a game has to re-derive its state from scratch.
	Clear() error
}
