package game

import (
	"encoding/json"

	"github.com/gamestatenet/gamestated/util/uint256"
	"github.com/pkg/errors"
)

// initialExternBufferSize is the buffer size an ExternGameLogic starts out
// with before any call has reported its requirements.
const initialExternBufferSize = 1024

// ExternCallbacks bundles the entry points of a game logic implemented behind
// a boundary where the caller must allocate every output buffer, typically a
// C-callable library. Each entry point receives output buffers of a size
// chosen by the caller and returns a result code: zero on success, or the
// minimum buffer size in bytes that would have sufficed when a buffer was too
// small. On success the *Size return values report how much of each buffer
// was actually written; they are meaningless for a nonzero code.
type ExternCallbacks struct {
	// GetNames writes the game's ID, display name and version string.
	GetNames func(id, name, version []byte) (idSize, nameSize, versionSize, code int)

	// GetInitialState writes the starting state for the given chain and the
	// hex form of the block hash it corresponds to. The hash buffer always
	// has room for exactly uint256.HexLength characters.
	GetInitialState func(chain int, state, hashHex []byte) (stateSize int, height int64, code int)

	// ProcessForward applies one block of data to oldState, writing the
	// resulting state and the undo data needed to unwind it.
	ProcessForward func(chain int, oldState, blockData, newState, undo []byte) (newStateSize, undoSize, code int)

	// ProcessBackwards unwinds one block, writing the reconstructed previous
	// state.
	ProcessBackwards func(chain int, newState, blockData, undo, oldState []byte) (oldStateSize, code int)
}

// ExternGameLogic adapts ExternCallbacks to the GameLogic interface. It owns
// the buffer-size negotiation: calls are retried with a larger buffer
// whenever an entry point reports that the provided one was too small.
//
// The negotiated size is kept across calls and never shrinks, and every
// growth step at least doubles it. Game states tend to grow gradually, so
// after a short warm-up almost every call succeeds on the first attempt, and
// even an adversarially growing state causes only an amortized handful of
// retried calls.
//
// An ExternGameLogic must not be shared between goroutines; the daemon drives
// it from the subscriber's receive goroutine only.
type ExternGameLogic struct {
	callbacks  ExternCallbacks
	chain      Chain
	bufferSize int
}

// NewExternGameLogic creates an adapter around the given entry points.
func NewExternGameLogic(callbacks ExternCallbacks) *ExternGameLogic {
	return &ExternGameLogic{
		callbacks:  callbacks,
		bufferSize: initialExternBufferSize,
	}
}

// SetChain configures the network passed through to the entry points.
func (g *ExternGameLogic) SetChain(chain Chain) {
	g.chain = chain
}

// increaseBufferSize grows the negotiated buffer size to the reported
// minimum, but by at least a factor of two.
func (g *ExternGameLogic) increaseBufferSize(desired int) {
	if doubled := 2 * g.bufferSize; desired < doubled {
		desired = doubled
	}
	log.Debugf("Growing extern buffer size from %d to %d", g.bufferSize, desired)
	g.bufferSize = desired
}

// checkSize validates a size reported by an entry point against the buffer it
// refers to.
func checkSize(size, bufLen int, what string) error {
	if size < 0 || size > bufLen {
		return errors.Errorf("extern game logic returned invalid %s size %d for buffer of %d bytes",
			what, size, bufLen)
	}
	return nil
}

// GetNames queries the game's ID, display name and version.
func (g *ExternGameLogic) GetNames() (id, name, version string, err error) {
	for {
		idBuf := make([]byte, g.bufferSize)
		nameBuf := make([]byte, g.bufferSize)
		versionBuf := make([]byte, g.bufferSize)

		idSize, nameSize, versionSize, code := g.callbacks.GetNames(idBuf, nameBuf, versionBuf)
		if code != 0 {
			g.increaseBufferSize(code)
			continue
		}

		for _, c := range []struct {
			size int
			what string
		}{{idSize, "id"}, {nameSize, "name"}, {versionSize, "version"}} {
			if err := checkSize(c.size, g.bufferSize, c.what); err != nil {
				return "", "", "", err
			}
		}
		return string(idBuf[:idSize]), string(nameBuf[:nameSize]),
			string(versionBuf[:versionSize]), nil
	}
}

// GetInitialState implements GameLogic.
func (g *ExternGameLogic) GetInitialState() (GameStateData, uint64, uint256.Uint256, error) {
	hashBuf := make([]byte, uint256.HexLength)
	for {
		stateBuf := make([]byte, g.bufferSize)

		stateSize, height, code := g.callbacks.GetInitialState(int(g.chain), stateBuf, hashBuf)
		if code != 0 {
			g.increaseBufferSize(code)
			continue
		}

		if err := checkSize(stateSize, g.bufferSize, "state"); err != nil {
			return nil, 0, uint256.Uint256{}, err
		}
		if height < 0 {
			return nil, 0, uint256.Uint256{},
				errors.Errorf("extern game logic returned negative height %d", height)
		}
		hash, err := uint256.FromHex(string(hashBuf))
		if err != nil {
			return nil, 0, uint256.Uint256{},
				errors.Wrap(err, "extern game logic returned an invalid block hash")
		}

		state := append(GameStateData(nil), stateBuf[:stateSize]...)
		return state, uint64(height), hash, nil
	}
}

// ProcessForward implements GameLogic.
func (g *ExternGameLogic) ProcessForward(oldState GameStateData, blockData json.RawMessage) (GameStateData, UndoData, error) {
	for {
		newStateBuf := make([]byte, g.bufferSize)
		undoBuf := make([]byte, g.bufferSize)

		newStateSize, undoSize, code := g.callbacks.ProcessForward(
			int(g.chain), oldState, blockData, newStateBuf, undoBuf)
		if code != 0 {
			g.increaseBufferSize(code)
			continue
		}

		if err := checkSize(newStateSize, g.bufferSize, "state"); err != nil {
			return nil, nil, err
		}
		if err := checkSize(undoSize, g.bufferSize, "undo"); err != nil {
			return nil, nil, err
		}

		newState := append(GameStateData(nil), newStateBuf[:newStateSize]...)
		undo := append(UndoData(nil), undoBuf[:undoSize]...)
		return newState, undo, nil
	}
}

// ProcessBackwards implements GameLogic. The returned state is the
// reconstructed pre-block state written by the entry point.
func (g *ExternGameLogic) ProcessBackwards(newState GameStateData, blockData json.RawMessage, undo UndoData) (GameStateData, error) {
	for {
		oldStateBuf := make([]byte, g.bufferSize)

		oldStateSize, code := g.callbacks.ProcessBackwards(
			int(g.chain), newState, blockData, undo, oldStateBuf)
		if code != 0 {
			g.increaseBufferSize(code)
			continue
		}

		if err := checkSize(oldStateSize, g.bufferSize, "state"); err != nil {
			return nil, err
		}

		oldState := append(GameStateData(nil), oldStateBuf[:oldStateSize]...)
		return oldState, nil
	}
}
