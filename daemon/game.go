package daemon

import (
	"encoding/json"
	"sync"

	"github.com/gamestatenet/gamestated/game"
	"github.com/gamestatenet/gamestated/storage"
	"github.com/gamestatenet/gamestated/util/uint256"
	"github.com/pkg/errors"
)

// blockData is the part of a notification payload the engine itself needs;
// the full payload is passed through to the game logic untouched.
type blockData struct {
	Block struct {
		Hash   string `json:"hash"`
		Parent string `json:"parent"`
		Height uint64 `json:"height"`
	} `json:"block"`
}

// Game drives one game's state: it receives block notifications from the
// subscriber, runs them through the game logic and persists the results.
//
// It deliberately does not try to repair a stream it can no longer trust.
// When a sequence mismatch is reported or an attached block does not extend
// the stored state, the game is marked out of sync and further notifications
// are ignored until Reinitialize is called. The alternative, applying blocks
// onto a state they do not belong to, silently corrupts the derived state.
//
// Errors from the game logic or the storage, on the other hand, have no safe
// reaction at all and panic; on the subscriber's receive goroutine this
// terminates the daemon.
type Game struct {
	gameID       string
	chain        game.Chain
	logic        game.GameLogic
	store        storage.Storage
	pruningDepth int

	mtx       sync.Mutex
	outOfSync bool
}

// NewGame creates an engine for one game. pruningDepth is the number of
// recent blocks whose undo data is kept; a negative value disables pruning.
func NewGame(gameID string, chain game.Chain, logic game.GameLogic,
	store storage.Storage, pruningDepth int) *Game {

	logic.SetChain(chain)
	return &Game{
		gameID:       gameID,
		chain:        chain,
		logic:        logic,
		store:        store,
		pruningDepth: pruningDepth,
	}
}

// GameID returns the game this engine drives.
func (g *Game) GameID() string {
	return g.gameID
}

// Chain returns the network this engine follows.
func (g *Game) Chain() game.Chain {
	return g.chain
}

// InitializeState seeds the storage from the logic's initial state if it does
// not hold a state yet.
func (g *Game) InitializeState() error {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	return g.initializeState()
}

func (g *Game) initializeState() error {
	current, ok, err := g.store.GetCurrentBlock()
	if err != nil {
		return err
	}
	if ok {
		log.Infof("Game %s resumes at height %d (block %s)",
			g.gameID, current.Height, current.Hash)
		g.outOfSync = false
		return nil
	}

	state, height, hash, err := g.logic.GetInitialState()
	if err != nil {
		return errors.Wrapf(err, "failed to get the initial state of %s", g.gameID)
	}
	err = g.store.SetCurrentState(hash, height, state)
	if err != nil {
		return err
	}
	log.Infof("Game %s starts fresh at height %d (block %s)", g.gameID, height, hash)
	g.outOfSync = false
	return nil
}

// Reinitialize drops all stored data and re-derives the initial state. This
// is the recovery path after the game has gone out of sync.
func (g *Game) Reinitialize() error {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	log.Warnf("Reinitializing game %s from scratch", g.gameID)
	err := g.store.Clear()
	if err != nil {
		return err
	}
	return g.initializeState()
}

// IsOutOfSync reports whether the engine has stopped applying notifications.
func (g *Game) IsOutOfSync() bool {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	return g.outOfSync
}

// CurrentBlock returns the chain position of the stored state.
func (g *Game) CurrentBlock() (storage.CurrentBlock, bool, error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	return g.store.GetCurrentBlock()
}

func (g *Game) markOutOfSync(format string, args ...interface{}) {
	if !g.outOfSync {
		log.Warnf("Game %s is out of sync: %s", g.gameID, errors.Errorf(format, args...))
		g.outOfSync = true
	}
}

// parseBlockData extracts the block metadata from a notification payload.
// The subscriber has already validated the payload as JSON; metadata that is
// missing or malformed beyond that means the publisher speaks a different
// protocol, which is not recoverable.
func parseBlockData(data json.RawMessage) blockData {
	var blk blockData
	err := json.Unmarshal(data, &blk)
	if err != nil {
		panic(errors.Wrap(err, "malformed block metadata in notification"))
	}
	if blk.Block.Hash == "" || blk.Block.Parent == "" {
		panic(errors.Errorf("notification is missing block hashes: %s", data))
	}
	return blk
}

func mustHashFromHex(hexStr string) uint256.Uint256 {
	hash, err := uint256.FromHex(hexStr)
	if err != nil {
		panic(errors.Wrapf(err, "invalid block hash %q in notification", hexStr))
	}
	return hash
}

// BlockAttach implements game.BlockListener.
func (g *Game) BlockAttach(gameID string, data json.RawMessage, seqMismatch bool) {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	blk := parseBlockData(data)
	if seqMismatch {
		g.markOutOfSync("sequence mismatch on attach of %s", blk.Block.Hash)
		return
	}
	if g.outOfSync {
		log.Debugf("Ignoring attach of %s while out of sync", blk.Block.Hash)
		return
	}

	current, ok, err := g.store.GetCurrentBlock()
	if err != nil {
		panic(errors.Wrap(err, "failed to read current block"))
	}
	if !ok {
		g.markOutOfSync("attach of %s without a stored state", blk.Block.Hash)
		return
	}
	if blk.Block.Parent != current.Hash.Hex() {
		g.markOutOfSync("attach of %s does not extend the current block %s",
			blk.Block.Hash, current.Hash)
		return
	}

	oldState, err := g.store.GetCurrentGameState()
	if err != nil {
		panic(errors.Wrap(err, "failed to read current game state"))
	}
	newState, undo, err := g.logic.ProcessForward(oldState, data)
	if err != nil {
		panic(errors.Wrapf(err, "failed to process block %s forward", blk.Block.Hash))
	}

	hash := mustHashFromHex(blk.Block.Hash)
	err = g.store.AddUndoData(hash, blk.Block.Height, undo)
	if err != nil {
		panic(errors.Wrapf(err, "failed to store undo data for %s", blk.Block.Hash))
	}
	err = g.store.SetCurrentState(hash, blk.Block.Height, newState)
	if err != nil {
		panic(errors.Wrapf(err, "failed to store state for %s", blk.Block.Hash))
	}
	log.Debugf("Game %s advanced to height %d (block %s)",
		g.gameID, blk.Block.Height, blk.Block.Hash)

	if g.pruningDepth >= 0 && blk.Block.Height >= uint64(g.pruningDepth) {
		err = g.store.PruneUndoData(blk.Block.Height - uint64(g.pruningDepth))
		if err != nil {
			panic(errors.Wrap(err, "failed to prune undo data"))
		}
	}
}

// BlockDetach implements game.BlockListener.
func (g *Game) BlockDetach(gameID string, data json.RawMessage, seqMismatch bool) {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	blk := parseBlockData(data)
	if seqMismatch {
		g.markOutOfSync("sequence mismatch on detach of %s", blk.Block.Hash)
		return
	}
	if g.outOfSync {
		log.Debugf("Ignoring detach of %s while out of sync", blk.Block.Hash)
		return
	}

	current, ok, err := g.store.GetCurrentBlock()
	if err != nil {
		panic(errors.Wrap(err, "failed to read current block"))
	}
	if !ok {
		g.markOutOfSync("detach of %s without a stored state", blk.Block.Hash)
		return
	}
	if blk.Block.Hash != current.Hash.Hex() {
		g.markOutOfSync("detach of %s while the current block is %s",
			blk.Block.Hash, current.Hash)
		return
	}

	hash := mustHashFromHex(blk.Block.Hash)
	undo, ok, err := g.store.GetUndoData(hash)
	if err != nil {
		panic(errors.Wrapf(err, "failed to read undo data for %s", blk.Block.Hash))
	}
	if !ok {
		// Without undo data the block cannot be unwound; this happens when
		// a reorg reaches deeper than the configured pruning depth.
		panic(errors.Errorf("no undo data for detached block %s", blk.Block.Hash))
	}

	newState, err := g.store.GetCurrentGameState()
	if err != nil {
		panic(errors.Wrap(err, "failed to read current game state"))
	}
	oldState, err := g.logic.ProcessBackwards(newState, data, undo)
	if err != nil {
		panic(errors.Wrapf(err, "failed to process block %s backwards", blk.Block.Hash))
	}

	parent := mustHashFromHex(blk.Block.Parent)
	err = g.store.SetCurrentState(parent, blk.Block.Height-1, oldState)
	if err != nil {
		panic(errors.Wrapf(err, "failed to store state for %s", blk.Block.Parent))
	}
	err = g.store.ReleaseUndoData(hash)
	if err != nil {
		panic(errors.Wrapf(err, "failed to release undo data for %s", blk.Block.Hash))
	}
	log.Debugf("Game %s unwound to height %d (block %s)",
		g.gameID, blk.Block.Height-1, blk.Block.Parent)
}
