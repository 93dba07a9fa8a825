package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yourusername/cat-engine/internal/pkg/logger"
)

// Defaults for the bus
const (
	DefaultQueueSize = 1024
	DefaultTopic     = "cat.events"
)

// BusConfig configures the event bus
type BusConfig struct {
	QueueSize int
	Topic     string
}

// Bus queues events in publish order and hands them one at a time to a
// watermill gochannel. Publishing never blocks: when the queue is full the
// event is dropped and a warning is logged.
type Bus struct {
	pubSub *gochannel.GoChannel
	topic  string
	queue  chan Event
	logger *logger.Logger

	// closeMu orders Publish against Close: once closed is set no event
	// enters the queue.
	closeMu sync.RWMutex
	closed  bool

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewBus creates the bus. Call Start to begin dispatching.
func NewBus(cfg BusConfig, log *logger.Logger) *Bus {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if log == nil {
		log = logger.Nop()
	}
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            int64(cfg.QueueSize),
			BlockPublishUntilSubscriberAck: true,
		},
		NewWatermillLogger(log),
	)
	return &Bus{
		pubSub: pubSub,
		topic:  cfg.Topic,
		queue:  make(chan Event, cfg.QueueSize),
		logger: log.Component("EventBus"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Publish enqueues the event
func (b *Bus) Publish(_ context.Context, event Event) {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		b.logger.Debug("Event bus closed, dropping event", "type", event.Type, "session_id", event.SessionID)
		return
	}
	select {
	case b.queue <- event:
	default:
		b.logger.Warn("Event queue is full, dropping event", "type", event.Type, "session_id", event.SessionID)
	}
}

// Subscribe returns a channel of bus messages. Consumers must Ack every
// message: the dispatcher waits for acknowledgement before sending the next.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, b.topic)
}

// Start launches the dispatcher goroutine
func (b *Bus) Start() {
	b.startOnce.Do(func() {
		go b.run()
	})
}

func (b *Bus) run() {
	defer close(b.done)
	for {
		select {
		case event := <-b.queue:
			b.dispatch(event)
		case <-b.stop:
			// drain what was queued before Close
			for {
				select {
				case event := <-b.queue:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "type", event.Type, "error", err)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("type", event.Type)
	if event.SessionID != "" {
		msg.Metadata.Set("session_id", event.SessionID)
	}
	if err := b.pubSub.Publish(b.topic, msg); err != nil {
		b.logger.Error("Failed to publish event", "type", event.Type, "error", err)
	}
}

// Close stops accepting events, flushes the queue and closes the pub/sub.
func (b *Bus) Close() error {
	b.stopOnce.Do(func() {
		b.closeMu.Lock()
		b.closed = true
		b.closeMu.Unlock()
		close(b.stop)
	})
	b.startOnce.Do(func() {
		// never started: nothing to drain into
		close(b.done)
	})
	<-b.done
	return b.pubSub.Close()
}
