package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gamestatenet/gamestated/game"
	"github.com/gamestatenet/gamestated/infrastructure/logger"
	"github.com/gamestatenet/gamestated/version"
	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultLogLevel       = "info"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "gamestated.log"
	defaultErrLogFilename = "gamestated_err.log"
	defaultPruningDepth   = -1
)

// DefaultHomeDir is the default directory for data and logs.
var DefaultHomeDir = defaultHomeDir()

func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".gamestated")
}

// Flags defines the command-line options of a game daemon.
type Flags struct {
	ShowVersion     bool   `short:"V" long:"version" description:"Display version information and exit"`
	HomeDir         string `short:"b" long:"homedir" description:"Directory to store data and logs"`
	DebugLevel      string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	NodeZMQEndpoint string `long:"nodezmq" description:"Endpoint at which the game-chain node publishes block notifications"`
	NodeRPCURL      string `long:"noderpc" description:"URL of the game-chain node's JSON-RPC interface, for components that query the chain directly"`
	StatusPort      int    `long:"statusport" description:"Port for the local HTTP status server (0 disables it)"`
	PruningDepth    int    `long:"pruning" description:"If non-negative, prune old undo data and keep only this many recent blocks"`
	MemoryStorage   bool   `long:"memstorage" description:"Keep the game state in memory instead of on disk"`
	Testnet         bool   `long:"testnet" description:"Follow the test network"`
	Regtest         bool   `long:"regtest" description:"Follow the regression test network"`
}

// Config is the fully resolved daemon configuration.
type Config struct {
	*Flags

	Chain   game.Chain
	DataDir string
	LogDir  string
}

// DefaultFlags returns the flag defaults before command-line parsing.
func DefaultFlags() *Flags {
	return &Flags{
		HomeDir:      DefaultHomeDir,
		DebugLevel:   defaultLogLevel,
		PruningDepth: defaultPruningDepth,
	}
}

// LoadConfig parses the given command-line arguments (normally os.Args[1:])
// and resolves them into a Config. When --version is given, the version is
// printed and the process exits.
func LoadConfig(appName string, arguments []string) (*Config, error) {
	cfgFlags := DefaultFlags()
	parser := flags.NewParser(cfgFlags, flags.HelpFlag)
	_, err := parser.ParseArgs(arguments)
	if err != nil {
		return nil, err
	}

	if cfgFlags.ShowVersion {
		fmt.Printf("%s version %s\n", appName, version.Version())
		os.Exit(0)
	}

	if cfgFlags.Testnet && cfgFlags.Regtest {
		return nil, errors.New("--testnet and --regtest may not be combined")
	}
	chain := game.ChainMain
	switch {
	case cfgFlags.Testnet:
		chain = game.ChainTest
	case cfgFlags.Regtest:
		chain = game.ChainRegtest
	}

	if cfgFlags.NodeZMQEndpoint == "" {
		return nil, errors.New("the --nodezmq endpoint of the node's notification socket is required")
	}
	if _, ok := logger.LevelFromString(cfgFlags.DebugLevel); !ok {
		return nil, errors.Errorf("invalid --debuglevel %q", cfgFlags.DebugLevel)
	}

	return &Config{
		Flags:   cfgFlags,
		Chain:   chain,
		DataDir: filepath.Join(cfgFlags.HomeDir, defaultDataDirname),
		LogDir:  filepath.Join(cfgFlags.HomeDir, defaultLogDirname),
	}, nil
}

// InitLogging attaches the daemon's log files to the shared logging backend
// and applies the configured level.
func (cfg *Config) InitLogging() error {
	err := logger.InitLog(
		filepath.Join(cfg.LogDir, defaultLogFilename),
		filepath.Join(cfg.LogDir, defaultErrLogFilename))
	if err != nil {
		return err
	}
	return logger.SetLogLevels(cfg.DebugLevel)
}
