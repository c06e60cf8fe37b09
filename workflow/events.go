package workflow

import (
	"encoding/json"

	"bitbucket.org/mmdatafocus/rma_backend/config"
)

// EventKind tags the lifecycle events the automation can receive. Only
// completion is acted on today; the tag keeps the dispatch explicit when
// more kinds arrive.
type EventKind string

const (
	EventReturnOrderCompleted EventKind = "returnorder.completed"
)

// Event is a fully decoded lifecycle event.
type Event struct {
	Kind          EventKind
	OrderId       int
	CorrelationId string
}

// DecodeEvent parses a raw message payload into an Event. A missing or
// unknown event name still decodes; WantsEvent decides whether it matters.
func DecodeEvent(data []byte) (Event, error) {

	var msg config.PubSubMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, err
	}

	return Event{
		Kind:          EventKind(msg.Event),
		OrderId:       msg.OrderId,
		CorrelationId: msg.CorrelationId,
	}, nil
}
