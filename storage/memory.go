package storage

import (
	"sync"

	"github.com/gamestatenet/gamestated/game"
	"github.com/gamestatenet/gamestated/util/uint256"
	"github.com/pkg/errors"
)

// undoEntry pairs stored undo data with the height it belongs to, so that
// pruning can drop entries by height.
type undoEntry struct {
	undo   game.UndoData
	height uint64
}

// MemoryStorage keeps the game state and undo data in memory. It is mainly
// useful for tests and for games whose state is cheap to re-derive, since
// everything is lost when the process exits.
type MemoryStorage struct {
	mtx sync.RWMutex

	hasState bool
	current  CurrentBlock
	state    game.GameStateData
	undo     map[uint256.Uint256]undoEntry
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Initialize implements Storage.
func (s *MemoryStorage) Initialize() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.undo == nil {
		s.undo = make(map[uint256.Uint256]undoEntry)
	}
	return nil
}

// Close implements Storage.
func (s *MemoryStorage) Close() error {
	return nil
}

// GetCurrentBlock implements Storage.
func (s *MemoryStorage) GetCurrentBlock() (CurrentBlock, bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.current, s.hasState, nil
}

// GetCurrentGameState implements Storage.
func (s *MemoryStorage) GetCurrentGameState() (game.GameStateData, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if !s.hasState {
		return nil, errors.New("memory storage: no game state is stored")
	}
	return append(game.GameStateData(nil), s.state...), nil
}

// SetCurrentState implements Storage.
func (s *MemoryStorage) SetCurrentState(hash uint256.Uint256, height uint64, state game.GameStateData) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.hasState = true
	s.current = CurrentBlock{Hash: hash, Height: height}
	s.state = append(game.GameStateData(nil), state...)
	return nil
}

// AddUndoData implements Storage.
func (s *MemoryStorage) AddUndoData(hash uint256.Uint256, height uint64, undo game.UndoData) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.undo[hash] = undoEntry{
		undo:   append(game.UndoData(nil), undo...),
		height: height,
	}
	return nil
}

// GetUndoData implements Storage.
func (s *MemoryStorage) GetUndoData(hash uint256.Uint256) (game.UndoData, bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	entry, ok := s.undo[hash]
	if !ok {
		return nil, false, nil
	}
	return append(game.UndoData(nil), entry.undo...), true, nil
}

// ReleaseUndoData implements Storage.
func (s *MemoryStorage) ReleaseUndoData(hash uint256.Uint256) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	delete(s.undo, hash)
	return nil
}

// PruneUndoData implements Storage.
func (s *MemoryStorage) PruneUndoData(maxHeight uint64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for hash, entry := range s.undo {
		if entry.height <= maxHeight {
			delete(s.undo, hash)
		}
	}
	return nil
}

// Clear implements Storage.
func (s *MemoryStorage) Clear() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.hasState = false
	s.current = CurrentBlock{}
	s.state = nil
	s.undo = make(map[uint256.Uint256]undoEntry)
	return nil
}
