package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"dealstream/internal/repository"
)

// Deliverer pushes an admitted notification toward its user. Delivery
// is best-effort; the notification record is already persisted.
type Deliverer interface {
	Deliver(ctx context.Context, n repository.Notification) error
}

// CallbackDeliverer hands notifications to an in-process function.
// Tests and embedded deployments use it instead of a broker.
type CallbackDeliverer struct {
	fn func(repository.Notification)
}

func NewCallbackDeliverer(fn func(repository.Notification)) *CallbackDeliverer {
	return &CallbackDeliverer{fn: fn}
}

func (d *CallbackDeliverer) Deliver(_ context.Context, n repository.Notification) error {
	d.fn(n)
	return nil
}

// natsDeliverer publishes notifications to JetStream, one subject per
// user, so push workers can consume them durably.
type natsDeliverer struct {
	js     jetstream.JetStream
	stream string
}

func NewNATSDeliverer(ctx context.Context, nc *nats.Conn) (Deliverer, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection cannot be nil")
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	return NewNATSDelivererFromJS(ctx, js)
}

func NewNATSDelivererFromJS(ctx context.Context, js jetstream.JetStream) (Deliverer, error) {
	d := &natsDeliverer{js: js, stream: "NOTIFICATIONS"}
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     d.stream,
		Subjects: []string{"notifications.>"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}
	return d, nil
}

func (d *natsDeliverer) Deliver(ctx context.Context, n repository.Notification) error {
	subject := fmt.Sprintf("notifications.%s", n.UserID)
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = d.js.Publish(ctx, subject, data)
	return err
}
