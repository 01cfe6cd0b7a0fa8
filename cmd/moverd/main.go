package main

import (
	"fmt"
	"os"

	"github.com/gamestatenet/gamestated/config"
	"github.com/gamestatenet/gamestated/daemon"
	"github.com/gamestatenet/gamestated/examples/mover"
	"github.com/gamestatenet/gamestated/infrastructure/logger"
	"github.com/gamestatenet/gamestated/util/panics"
)

// gameID is the name under which the mover game's block notifications are
// published by the node.
const gameID = "mv"

var log, _ = logger.Get(logger.SubsystemTags.GSTD)

func main() {
	cfg, err := config.LoadConfig("moverd", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	err = cfg.InitLogging()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.BackendLog().Close()
	defer panics.HandlePanic(log, nil)

	err = daemon.Run(cfg, gameID, mover.NewLogic())
	if err != nil {
		log.Errorf("moverd failed: %s", err)
		os.Exit(1)
	}
}
