package daemon

import (
	"path/filepath"

	"github.com/gamestatenet/gamestated/config"
	"github.com/gamestatenet/gamestated/game"
	"github.com/gamestatenet/gamestated/signal"
	"github.com/gamestatenet/gamestated/storage"
	"github.com/gamestatenet/gamestated/version"
)

// Run starts a daemon for the given game and blocks until an interrupt is
// received. It wires the configured storage, the block subscriber and the
// game logic together; this is all a game binary's main function needs to
// call after loading its configuration.
func Run(cfg *config.Config, gameID string, logic game.GameLogic) error {
	log.Infof("Version %s", version.Version())
	log.Infof("Starting game %s on the %s network", gameID, cfg.Chain)
	if cfg.NodeRPCURL != "" {
		log.Infof("Game-chain node RPC at %s", cfg.NodeRPCURL)
	}

	var store storage.Storage
	if cfg.MemoryStorage {
		log.Info("Using in-memory storage; the state is rebuilt on every start")
		store = storage.NewMemoryStorage()
	} else {
		dbPath := filepath.Join(cfg.DataDir, gameID)
		log.Infof("Using LevelDB storage at %s", dbPath)
		store = storage.NewLevelDBStorage(dbPath)
	}
	err := store.Initialize()
	if err != nil {
		return err
	}
	defer func() {
		err := store.Close()
		if err != nil {
			log.Errorf("Failed to close the storage: %s", err)
		}
	}()

	g := NewGame(gameID, cfg.Chain, logic, store, cfg.PruningDepth)
	err = g.InitializeState()
	if err != nil {
		return err
	}

	sub := game.NewSubscriber()
	sub.SetEndpoint(cfg.NodeZMQEndpoint)
	sub.AddListener(gameID, g)
	err = sub.Start()
	if err != nil {
		return err
	}
	defer sub.Stop()
	log.Infof("Listening for block notifications at %s", cfg.NodeZMQEndpoint)

	if cfg.StatusPort != 0 {
		status := newStatusServer(cfg.StatusPort, g)
		err = status.start()
		if err != nil {
			return err
		}
		defer status.stop()
	}

	interrupt := signal.InterruptListener()
	<-interrupt
	log.Info("Shutting down")
	return nil
}
