package storage

import (
	"encoding/binary"

	"github.com/gamestatenet/gamestated/game"
	"github.com/gamestatenet/gamestated/util/uint256"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	ldbutil "github.com/syndtr/goleveldb/leveldb/util"
)

var (
	currentStateKey = []byte("currentstate")
	undoKeyPrefix   = []byte("undo:")
)

// Game states are typically small compared to block data, so the database is
// tuned well below the defaults a full node would use.
var levelDBOptions = opt.Options{
	Compression:        opt.NoCompression,
	BlockCacheCapacity: 8 * opt.MiB,
	WriteBuffer:        4 * opt.MiB,
}

// LevelDBStorage persists the game state and undo data in a LevelDB database
// on disk.
type LevelDBStorage struct {
	path string
	db   *leveldb.DB
}

// NewLevelDBStorage creates a storage that will keep its database at the
// given path once initialized.
func NewLevelDBStorage(path string) *LevelDBStorage {
	return &LevelDBStorage{path: path}
}

// Initialize implements Storage. It opens (and if necessary creates) the
// database.
func (s *LevelDBStorage) Initialize() error {
	db, err := leveldb.OpenFile(s.path, &levelDBOptions)
	if err != nil {
		return errors.Wrapf(err, "failed to open database at %s", s.path)
	}
	s.db = db
	log.Debugf("Opened game-state database at %s", s.path)
	return nil
}

// Close implements Storage.
func (s *LevelDBStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return errors.Wrap(err, "failed to close database")
	}
	return nil
}

func undoKey(hash uint256.Uint256) []byte {
	return append(append([]byte(nil), undoKeyPrefix...), hash.CloneBytes()...)
}

// GetCurrentBlock implements Storage.
func (s *LevelDBStorage) GetCurrentBlock() (CurrentBlock, bool, error) {
	value, err := s.db.Get(currentStateKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return CurrentBlock{}, false, nil
	}
	if err != nil {
		return CurrentBlock{}, false, errors.Wrap(err, "failed to read current state")
	}
	current, _, err := decodeCurrentState(value)
	if err != nil {
		return CurrentBlock{}, false, err
	}
	return current, true, nil
}

// GetCurrentGameState implements Storage.
func (s *LevelDBStorage) GetCurrentGameState() (game.GameStateData, error) {
	value, err := s.db.Get(currentStateKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, errors.New("no game state is stored")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read current state")
	}
	_, state, err := decodeCurrentState(value)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SetCurrentState implements Storage.
func (s *LevelDBStorage) SetCurrentState(hash uint256.Uint256, height uint64, state game.GameStateData) error {
	value := make([]byte, 0, uint256.Size+8+len(state))
	value = append(value, hash.CloneBytes()...)
	value = binary.BigEndian.AppendUint64(value, height)
	value = append(value, state...)

	err := s.db.Put(currentStateKey, value, nil)
	if err != nil {
		return errors.Wrap(err, "failed to write current state")
	}
	return nil
}

func decodeCurrentState(value []byte) (CurrentBlock, game.GameStateData, error) {
	if len(value) < uint256.Size+8 {
		return CurrentBlock{}, nil, errors.Errorf("corrupt current-state record of %d bytes", len(value))
	}
	hash, err := uint256.FromBytes(value[:uint256.Size])
	if err != nil {
		return CurrentBlock{}, nil, err
	}
	height := binary.BigEndian.Uint64(value[uint256.Size : uint256.Size+8])
	state := append(game.GameStateData(nil), value[uint256.Size+8:]...)
	return CurrentBlock{Hash: hash, Height: height}, state, nil
}

// AddUndoData implements Storage.
func (s *LevelDBStorage) AddUndoData(hash uint256.Uint256, height uint64, undo game.UndoData) error {
	value := make([]byte, 0, 8+len(undo))
	value = binary.BigEndian.AppendUint64(value, height)
	value = append(value, undo...)

	err := s.db.Put(undoKey(hash), value, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to write undo data for %s", hash)
	}
	return nil
}

// GetUndoData implements Storage.
func (s *LevelDBStorage) GetUndoData(hash uint256.Uint256) (game.UndoData, bool, error) {
	value, err := s.db.Get(undoKey(hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read undo data for %s", hash)
	}
	if len(value) < 8 {
		return nil, false, errors.Errorf("corrupt undo record of %d bytes", len(value))
	}
	return append(game.UndoData(nil), value[8:]...), true, nil
}

// ReleaseUndoData implements Storage.
func (s *LevelDBStorage) ReleaseUndoData(hash uint256.Uint256) error {
	err := s.db.Delete(undoKey(hash), nil)
	if err != nil {
		return errors.Wrapf(err, "failed to delete undo data for %s", hash)
	}
	return nil
}

// PruneUndoData implements Storage.
func (s *LevelDBStorage) PruneUndoData(maxHeight uint64) error {
	batch := new(leveldb.Batch)

	iter := s.db.NewIterator(ldbutil.BytesPrefix(undoKeyPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		value := iter.Value()
		if len(value) < 8 {
			return errors.Errorf("corrupt undo record of %d bytes", len(value))
		}
		if binary.BigEndian.Uint64(value[:8]) <= maxHeight {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
	}
	if err := iter.Error(); err != nil {
		return errors.Wrap(err, "failed to iterate undo data")
	}

	if batch.Len() == 0 {
		return nil
	}
	log.Debugf("Pruning %d undo entries up to height %d", batch.Len(), maxHeight)
	err := s.db.Write(batch, nil)
	if err != nil {
		return errors.Wrap(err, "failed to prune undo data")
	}
	return nil
}

// Clear implements Storage.
func (s *LevelDBStorage) Clear() error {
	batch := new(leveldb.Batch)

	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return errors.Wrap(err, "failed to iterate database")
	}

	err := s.db.Write(batch, nil)
	if err != nil {
		return errors.Wrap(err, "failed to clear database")
	}
	return nil
}
