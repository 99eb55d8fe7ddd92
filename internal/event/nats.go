package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NATSEmitter publishes events on a NATS subject for the front end to
// consume.
type NATSEmitter struct {
	conn    *nats.Conn
	subject string
	log     *slog.Logger
}

// NewNATSEmitter connects to the bus. The connection is kept for the
// process lifetime; Close releases it.
func NewNATSEmitter(url, subject string, log *slog.Logger) (*NATSEmitter, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("EVT_CONNECT: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	log.Info("event bus connected", "url", url, "subject", subject)
	return &NATSEmitter{conn: conn, subject: subject, log: log}, nil
}

func (e *NATSEmitter) Emit(_ context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		e.log.Error("event encode failed", "name", ev.Name, "error", err)
		return
	}
	if err := e.conn.Publish(e.subject, data); err != nil {
		// Fire-and-forget: the front end missing an event is not a
		// lifecycle failure.
		e.log.Error("event publish failed", "name", ev.Name, "error", err)
		return
	}
	e.log.Debug("event published", "name", ev.Name, "subject", e.subject)
}

func (e *NATSEmitter) Close() {
	if e.conn != nil {
		e.conn.Close()
	}
}
