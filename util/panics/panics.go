package panics

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/gamestatenet/gamestated/infrastructure/logger"
)

const exitHandlerTimeout = 5 * time.Second

// HandlePanic recovers a panic, logs it together with the stack trace of the
// goroutine that spawned the panicking one, and terminates the process.
func HandlePanic(log *logger.Logger, spawnerStackTrace []byte) {
	err := recover()
	if err == nil {
		return
	}

	reason := fmt.Sprintf("Fatal error: %+v", err)
	exit(log, reason, debug.Stack(), spawnerStackTrace)
}

// GoroutineWrapperFunc returns a function for spawning goroutines whose panics
// are logged before the process exits. Every background goroutine in the
// application is started through such a wrapper.
func GoroutineWrapperFunc(log *logger.Logger) func(func()) {
	return func(f func()) {
		spawnerStackTrace := debug.Stack()
		go func() {
			defer HandlePanic(log, spawnerStackTrace)
			f()
		}()
	}
}

// Exit logs the given reason and terminates the process.
func Exit(log *logger.Logger, reason string) {
	exit(log, reason, nil, nil)
}

func exit(log *logger.Logger, reason string, stackTrace, spawnerStackTrace []byte) {
	exitHandlerDone := make(chan struct{})
	go func() {
		log.Criticalf("Exiting: %s", reason)
		if spawnerStackTrace != nil {
			log.Criticalf("Goroutine spawner stack trace: %s", spawnerStackTrace)
		}
		if stackTrace != nil {
			log.Criticalf("Stack trace: %s", stackTrace)
		}
		log.Backend().Close()
		close(exitHandlerDone)
	}()

	select {
	case <-time.After(exitHandlerTimeout):
		fmt.Fprintln(os.Stderr, "Couldn't exit gracefully.")
	case <-exitHandlerDone:
	}
	os.Exit(1)
}
