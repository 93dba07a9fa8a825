package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/yourusername/cat-engine/internal/pkg/logger"
)

// StreamName is the JetStream stream holding engine events
const StreamName = "CAT_EVENTS"

// NATSForwarder republishes bus events to NATS JetStream under their event
// type as subject (cat.session.started, ...).
type NATSForwarder struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// NewNATSForwarder connects to NATS and makes sure the stream exists
func NewNATSForwarder(url string, log *logger.Logger) (*NATSForwarder, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("NATSForwarder")

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"cat.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		// the stream may already exist with other settings or the server is not ready yet
		log.Warn("Failed to ensure stream", "stream", StreamName, "error", err)
	}

	return &NATSForwarder{nc: nc, js: js, logger: log}, nil
}

// Run forwards messages until the channel closes or ctx is done
func (f *NATSForwarder) Run(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			f.forward(ctx, msg)
			msg.Ack()
		}
	}
}

func (f *NATSForwarder) forward(ctx context.Context, msg *message.Message) {
	subject := msg.Metadata.Get("type")
	if subject == "" {
		f.logger.Warn("Event without type, not forwarded", "message_id", msg.UUID)
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := f.js.Publish(pubCtx, subject, msg.Payload); err != nil {
		f.logger.Warn("Failed to forward event to NATS", "subject", subject, "error", err)
	}
}

// Close closes the NATS connection
func (f *NATSForwarder) Close() {
	if f.nc != nil {
		f.nc.Close()
	}
}
