package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const statusShutdownTimeout = 5 * time.Second

// statusServer exposes the sync state of a game over a small local HTTP
// endpoint, so that operators and frontends can poll whether the daemon is
// caught up before trusting its state.
type statusServer struct {
	game     *Game
	server   *http.Server
	listener net.Listener
}

func newStatusServer(port int, g *Game) *statusServer {
	s := &statusServer{game: g}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}
	return s
}

// start binds the listening socket synchronously so that a port conflict is
// reported as an error, then serves in the background.
func (s *statusServer) start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s for status requests", s.server.Addr)
	}
	s.listener = listener
	log.Infof("Status server listening on %s", listener.Addr())

	spawn(func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Status server failed: %s", err)
		}
	})
	return nil
}

func (s *statusServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		log.Errorf("Failed to shut down the status server: %s", err)
	}
}

type statusReply struct {
	GameID    string `json:"gameId"`
	Chain     string `json:"chain"`
	Synced    bool   `json:"synced"`
	Height    uint64 `json:"height,omitempty"`
	BlockHash string `json:"blockHash,omitempty"`
}

func (s *statusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	current, ok, err := s.game.CurrentBlock()
	if err != nil {
		log.Errorf("Failed to read the current block for a status request: %s", err)
		http.Error(w, "failed to read the current block", http.StatusInternalServerError)
		return
	}

	reply := statusReply{
		GameID: s.game.GameID(),
		Chain:  s.game.Chain().String(),
		Synced: !s.game.IsOutOfSync(),
	}
	if ok {
		reply.Height = current.Height
		reply.BlockHash = current.Hash.Hex()
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(&reply)
	if err != nil {
		log.Errorf("Failed to write a status reply: %s", err)
	}
}
