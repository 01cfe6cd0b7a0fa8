package game

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"strings"
	"sync"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
)

// Topic components of the node's block notifications. A full topic has the
// form "game-block-attach json <gameID>".
const (
	attachTopicPrefix = "game-block-attach"
	detachTopicPrefix = "game-block-detach"
	topicEncoding     = "json"
)

// Subscriber connects to the pub/sub endpoint of the game-chain node and
// dispatches block-attach and block-detach notifications to the listeners
// registered for the corresponding games.
//
// The lifecycle is strict: endpoint and listeners are configured while the
// subscriber is stopped, then Start spawns a single receive goroutine and
// Stop joins it again. Misusing the lifecycle (starting twice, stopping a
// stopped subscriber, reconfiguring while running, registering two listeners
// for one game) is an integrator bug and panics.
//
// Malformed notifications are likewise treated as unrecoverable: the node is
// a trusted peer, and a frame that violates the wire protocol indicates a
// broken publisher rather than a condition to paper over. Sequence-number
// gaps, on the other hand, are normal chain operation and are surfaced to
// listeners through the seqMismatch flag.
type Subscriber struct {
	mtx sync.Mutex

	endpoint  string
	listeners map[string]BlockListener

	sock         zmq4.Socket
	cancelSocket context.CancelFunc
	running      bool
	shouldStop   bool
	wg           sync.WaitGroup

	// lastSeq holds the previously observed sequence number per topic. It is
	// only touched by the receive goroutine while running and is reset on
	// every Start.
	lastSeq map[string]uint32

	// noListeningForTesting makes Start connect and subscribe without
	// spawning the receive loop, so tests can drive receiveMultiparts and
	// processMessage deterministically.
	noListeningForTesting bool
}

// NewSubscriber creates a subscriber with no endpoint and no listeners.
func NewSubscriber() *Subscriber {
	return &Subscriber{
		listeners: make(map[string]BlockListener),
		lastSeq:   make(map[string]uint32),
	}
}

// attachTopic returns the attach topic for a game.
func attachTopic(gameID string) string {
	return attachTopicPrefix + " " + topicEncoding + " " + gameID
}

// detachTopic returns the detach topic for a game.
func detachTopic(gameID string) string {
	return detachTopicPrefix + " " + topicEncoding + " " + gameID
}

// parseTopic splits a topic into its event prefix and game ID. ok is false
// for topics that are not block notifications in json encoding.
func parseTopic(topic string) (prefix, gameID string, ok bool) {
	for _, p := range []string{attachTopicPrefix, detachTopicPrefix} {
		full := p + " " + topicEncoding + " "
		if strings.HasPrefix(topic, full) {
			return p, topic[len(full):], true
		}
	}
	return "", "", false
}

// SetEndpoint sets the address of the node's notification socket. Panics if
// the subscriber is running.
func (s *Subscriber) SetEndpoint(address string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.running {
		panic(errors.New("subscriber: SetEndpoint called while running"))
	}
	s.endpoint = address
}

// IsEndpointSet returns whether an endpoint has been configured.
func (s *Subscriber) IsEndpointSet() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.endpoint != ""
}

// IsRunning returns whether the receive loop is active.
func (s *Subscriber) IsRunning() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.running
}

// AddListener registers the listener for a game's notifications. At most one
// listener may be registered per game; violating this, or registering while
// running, panics.
func (s *Subscriber) AddListener(gameID string, listener BlockListener) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.running {
		panic(errors.New("subscriber: AddListener called while running"))
	}
	if _, ok := s.listeners[gameID]; ok {
		panic(errors.Errorf("subscriber: a listener for game %q is already registered", gameID))
	}
	s.listeners[gameID] = listener
}

// Start connects to the configured endpoint, subscribes to the attach and
// detach topics of every registered game and spawns the receive loop. Panics
// if no endpoint is set or the subscriber is already running; returns an
// error if the connection cannot be established.
func (s *Subscriber) Start() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.endpoint == "" {
		panic(errors.New("subscriber: Start called without an endpoint"))
	}
	if s.running {
		panic(errors.New("subscriber: Start called while already running"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	sock := zmq4.NewSub(ctx)

	err := sock.Dial(s.endpoint)
	if err != nil {
		cancel()
		return errors.Wrapf(err, "subscriber: failed to connect to %s", s.endpoint)
	}
	for gameID := range s.listeners {
		for _, topic := range []string{attachTopic(gameID), detachTopic(gameID)} {
			err := sock.SetOption(zmq4.OptionSubscribe, topic)
			if err != nil {
				cancel()
				_ = sock.Close()
				return errors.Wrapf(err, "subscriber: failed to subscribe to %q", topic)
			}
		}
	}
	log.Debugf("Subscribed to %d games at %s", len(s.listeners), s.endpoint)

	s.sock = sock
	s.cancelSocket = cancel
	s.lastSeq = make(map[string]uint32)
	s.shouldStop = false
	s.running = true

	if !s.noListeningForTesting {
		s.wg.Add(1)
		spawn(func() {
			defer s.wg.Done()
			s.receiveLoop()
		})
	}
	return nil
}

// Stop signals the receive loop to terminate, waits for it and tears down the
// socket. Panics if the subscriber is not running.
func (s *Subscriber) Stop() {
	s.mtx.Lock()
	if !s.running {
		s.mtx.Unlock()
		panic(errors.New("subscriber: Stop called while not running"))
	}
	s.shouldStop = true
	cancel := s.cancelSocket
	s.mtx.Unlock()

	// Wake the receive goroutine out of its blocking receive, then join it.
	// The socket is only closed once the goroutine is known to be gone.
	cancel()
	s.wg.Wait()

	s.mtx.Lock()
	defer s.mtx.Unlock()
	err := s.sock.Close()
	if err != nil {
		log.Warnf("Error closing notification socket: %s", err)
	}
	s.sock = nil
	s.cancelSocket = nil
	s.running = false
	log.Debugf("Subscriber for %s stopped", s.endpoint)
}

// stopRequested returns whether Stop has signalled the receive loop.
func (s *Subscriber) stopRequested() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.shouldStop
}

// receiveLoop reads notifications until Stop is requested. It runs on its own
// goroutine; a wire-protocol violation panics out of it, which terminates the
// process through the goroutine wrapper.
func (s *Subscriber) receiveLoop() {
	log.Debugf("Receive loop for %s started", s.endpoint)
	for {
		topic, payload, seq, ok := s.receiveMultiparts()
		if !ok {
			return
		}
		s.processMessage(topic, payload, seq)
	}
}

// receiveMultiparts performs one blocking receive and decodes the three
// protocol frames: topic, JSON payload and 4-byte little-endian sequence
// number. ok is false when the receive was interrupted by Stop. Any frame
// layout other than the protocol's is a fatal violation and panics.
func (s *Subscriber) receiveMultiparts() (topic string, payload []byte, seq uint32, ok bool) {
	msg, err := s.sock.Recv()
	if err != nil {
		if s.stopRequested() {
			return "", nil, 0, false
		}
		panic(errors.Wrap(err, "subscriber: receiving notification failed"))
	}
	if s.stopRequested() {
		return "", nil, 0, false
	}

	if len(msg.Frames) != 3 {
		panic(errors.Errorf("subscriber: expected exactly three message parts, got %d",
			len(msg.Frames)))
	}
	seqData := msg.Frames[2]
	if len(seqData) != 4 {
		panic(errors.Errorf("subscriber: sequence number should have size 4, got %d",
			len(seqData)))
	}

	return string(msg.Frames[0]), msg.Frames[1], binary.LittleEndian.Uint32(seqData), true
}

// processMessage dispatches one decoded notification: it resolves the topic
// to a registered listener, updates the per-topic sequence state and invokes
// the listener synchronously. Messages for unregistered games are dropped;
// the socket may still be carrying subscriptions that are being torn down.
func (s *Subscriber) processMessage(topic string, payload []byte, seq uint32) {
	prefix, gameID, ok := parseTopic(topic)
	if !ok {
		log.Debugf("Ignoring message with unexpected topic %q", topic)
		return
	}
	listener, ok := s.listeners[gameID]
	if !ok {
		log.Tracef("Ignoring notification for unregistered game %q", gameID)
		return
	}

	seqMismatch := false
	if prev, seen := s.lastSeq[topic]; seen && seq != prev+1 {
		seqMismatch = true
		log.Warnf("Sequence mismatch on topic %q: got %d after %d", topic, seq, prev)
	}
	s.lastSeq[topic] = seq

	if !json.Valid(payload) {
		panic(errors.Errorf("subscriber: error parsing notification payload as JSON: %q",
			payload))
	}
	data := json.RawMessage(payload)

	switch prefix {
	case attachTopicPrefix:
		listener.BlockAttach(gameID, data, seqMismatch)
	case detachTopicPrefix:
		listener.BlockDetach(gameID, data, seqMismatch)
	}
}
