package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Postgres rejects NOTIFY payloads of 8000 bytes or more.
const maxNotifyPayload = 7999

var ErrPayloadTooLarge = errors.New("notify payload too large")

// PGNotifier publishes events through pg_notify so every server process
// listening on the channel sees them.
type PGNotifier struct {
	db      *gorm.DB
	channel string
}

func NewPGNotifier(db *gorm.DB, channel string) *PGNotifier {
	return &PGNotifier{db: db, channel: channel}
}

// Publish sends an event too large for NOTIFY without its row; receivers
// treat a row-less event as a request to resync the topic.
func (n *PGNotifier) Publish(ctx context.Context, ev Event) error {
	payload, err := encodeNotify(ev)
	if err != nil {
		return err
	}
	return n.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", n.channel, payload).Error
}

func encodeNotify(ev Event) (string, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	if len(payload) <= maxNotifyPayload {
		return string(payload), nil
	}
	slog.Warn("pubsub: event too large for notify, sending resync", "topic", ev.SessionID, "bytes", len(payload))
	ev.Row = nil
	if payload, err = json.Marshal(ev); err != nil {
		return "", err
	}
	if len(payload) > maxNotifyPayload {
		return "", fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	return string(payload), nil
}

// PGRelay listens on a Postgres channel and republishes notifications into
// the local broker.
type PGRelay struct {
	listener *pq.Listener
	broker   *Broker
	channel  string
}

func NewPGRelay(dsn, channel string, broker *Broker) *PGRelay {
	r := &PGRelay{broker: broker, channel: channel}
	r.listener = pq.NewListener(dsn, 2*time.Second, time.Minute, r.onListenerEvent)
	return r
}

// Run blocks until ctx is cancelled.
func (r *PGRelay) Run(ctx context.Context) error {
	if err := r.listener.Listen(r.channel); err != nil {
		return fmt.Errorf("listen %s: %w", r.channel, err)
	}
	defer r.listener.Close()
	slog.Info("pubsub: relay listening", "channel", r.channel)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-r.listener.Notify:
			r.handle(n)
		case <-ping.C:
			go func() {
				if err := r.listener.Ping(); err != nil {
					slog.Warn("pubsub: relay ping failed", "error", err)
				}
			}()
		}
	}
}

// A nil notification is sent by pq after a reconnect; anything published
// while the connection was down is gone, so all viewers must resync.
func (r *PGRelay) handle(n *pq.Notification) {
	if n == nil {
		r.broker.Reset()
		return
	}

	var ev Event
	if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
		slog.Warn("pubsub: relay dropped malformed payload", "error", err)
		return
	}
	if len(ev.Row) == 0 || string(ev.Row) == "null" {
		r.broker.ResetTopic(ev.SessionID)
		return
	}
	r.broker.Publish(context.Background(), ev)
}

func (r *PGRelay) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		slog.Info("pubsub: relay connected")
	case pq.ListenerEventDisconnected:
		slog.Warn("pubsub: relay disconnected", "error", err)
	case pq.ListenerEventReconnected:
		slog.Info("pubsub: relay reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		slog.Warn("pubsub: relay connection attempt failed", "error", err)
	}
}
