package game

import "encoding/json"

// BlockListener receives the block notifications of one game. Both methods
// are invoked synchronously on the subscriber's receive goroutine, so the
// next notification is not read before the current one has been handled.
//
// seqMismatch is true when the notification's sequence number is not the
// successor of the previous one seen on the same topic. It signals that
// notifications may have been lost or reordered; listeners that maintain
// incremental state should treat it as a cue to re-derive their state rather
// than trust further incremental application.
type BlockListener interface {
	BlockAttach(gameID string, data json.RawMessage, seqMismatch bool)
	BlockDetach(gameID string, data json.RawMessage, seqMismatch bool)
}
