package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nitedsync/internal/core"
	"nitedsync/internal/remote"
)

var (
	dispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nitedsync_notifications_dispatched_total",
		Help: "The total number of notifications written to the remote tree",
	}, []string{"kind", "status"})
)

// Dispatcher writes engagement notifications under the recipient's remote
// namespace. Writes are fire-and-forget: a failure is logged and dropped,
// never retried. Recipient keys must already be canonical.
type Dispatcher struct {
	Logger *slog.Logger
	Remote *remote.NATS
}

func (d *Dispatcher) Init(context.Context) error {
	d.Logger = d.Logger.With("component", "notify.Dispatcher")
	return nil
}

func (d *Dispatcher) Dispatch(_ context.Context, recipientKey string, kind core.NotificationKind, message string, actor core.Actor) {
	notification := core.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		Actor:     actor,
		CreatedAt: time.Now().UnixMilli(),
		Read:      false,
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		d.Logger.Error("failed to marshal notification", "error", err)
		return
	}

	go func() {
		// A separate context: the caller's may already be canceled by the
		// time the write lands.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := d.Remote.Bucket(remote.BucketNotifications).Put(ctx, Key(recipientKey, notification.ID), payload)
		if err != nil {
			dispatched.WithLabelValues(string(kind), "error").Inc()
			d.Logger.Error("failed to dispatch notification", "recipient", recipientKey, "error", err)
			return
		}
		dispatched.WithLabelValues(string(kind), "ok").Inc()
	}()
}

// MarkRead flips the Read flag of a stored notification. Nothing else about
// a notification is ever mutated.
func (d *Dispatcher) MarkRead(ctx context.Context, recipientKey, id string) error {
	return d.Remote.Bucket(remote.BucketNotifications).Update(ctx, Key(recipientKey, id), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, core.ErrKeyNotFound
		}

		var notification core.Notification
		if err := json.Unmarshal(current, &notification); err != nil {
			return nil, err
		}
		notification.Read = true
		return json.Marshal(notification)
	})
}

// Key is the hierarchical tree key for one notification.
func Key(recipientKey, id string) string {
	return recipientKey + "." + id
}
