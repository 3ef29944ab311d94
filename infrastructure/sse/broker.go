package sse

import (
	"context"
	"errors"
	"sync"
	"time"

	infralogger "github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
)

// Defaults for Config.
const (
	DefaultBufferSize       = 256
	DefaultClientBufferSize = 32
	DefaultMaxClients       = 100
	DefaultHeartbeat        = 15 * time.Second
)

var (
	// ErrBufferFull is returned by Publish when the broker cannot keep up.
	ErrBufferFull = errors.New("event buffer full")
	// ErrTooManyClients is returned by Subscribe at the client limit.
	ErrTooManyClients = errors.New("too many event stream clients")
	// ErrStopped is returned by Subscribe after Stop.
	ErrStopped = errors.New("event broker stopped")
)

// Config sizes the broker.
type Config struct {
	BufferSize       int           `yaml:"buffer_size"`
	ClientBufferSize int           `yaml:"client_buffer_size"`
	MaxClients       int           `yaml:"max_clients"`
	Heartbeat        time.Duration `yaml:"heartbeat"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ClientBufferSize <= 0 {
		c.ClientBufferSize = DefaultClientBufferSize
	}
	if c.MaxClients <= 0 {
		c.MaxClients = DefaultMaxClients
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = DefaultHeartbeat
	}
}

type subscriber struct {
	events chan Event
	filter Filter
}

func (s *subscriber) wants(e Event) bool {
	return s.filter == nil || s.filter(e)
}

// Broker delivers published events to every subscriber. A subscriber whose buffer is
// full is disconnected rather than slowing the others down. New subscribers first
// receive the last event published, so they start from the current state.
type Broker struct {
	cfg     Config
	log     infralogger.Logger
	publish chan Event

	mu          sync.Mutex
	subscribers map[uint64]*subscriber
	nextID      uint64
	last        *Event
	stopped     bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBroker creates a broker. Call Start before publishing.
func NewBroker(cfg Config, log infralogger.Logger) *Broker {
	cfg.SetDefaults()
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Broker{
		cfg:         cfg,
		log:         log,
		publish:     make(chan Event, cfg.BufferSize),
		subscribers: make(map[uint64]*subscriber),
		done:        make(chan struct{}),
	}
}

// Heartbeat is the keep-alive interval for stream handlers.
func (b *Broker) Heartbeat() time.Duration {
	return b.cfg.Heartbeat
}

// Start runs the fan-out loop until ctx ends or Stop is called.
func (b *Broker) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	go b.run(loopCtx)

	b.log.Info("Event broker started",
		infralogger.Int("buffer_size", b.cfg.BufferSize),
		infralogger.Int("max_clients", b.cfg.MaxClients),
	)
}

// Stop ends the fan-out loop and closes every subscription.
func (b *Broker) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
}

// Publish queues an event without blocking.
func (b *Broker) Publish(e Event) error {
	select {
	case b.publish <- e:
		return nil
	default:
		return ErrBufferFull
	}
}

// Subscribe registers a subscriber. The returned channel is closed when the
// subscriber is dropped or the broker stops; unsubscribe is safe to call twice.
func (b *Broker) Subscribe(filter Filter) (events <-chan Event, unsubscribe func(), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return nil, nil, ErrStopped
	}
	if len(b.subscribers) >= b.cfg.MaxClients {
		return nil, nil, ErrTooManyClients
	}

	sub := &subscriber{
		events: make(chan Event, b.cfg.ClientBufferSize),
		filter: filter,
	}
	if b.last != nil && sub.wants(*b.last) {
		sub.events <- *b.last
	}

	id := b.nextID
	b.nextID++
	b.subscribers[id] = sub

	return sub.events, func() { b.drop(id) }, nil
}

// Clients returns the number of subscribers.
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Broker) run(ctx context.Context) {
	defer close(b.done)

	for {
		select {
		case e := <-b.publish:
			b.broadcast(e)
		case <-ctx.Done():
			b.closeAll()
			b.log.Info("Event broker stopped")
			return
		}
	}
}

func (b *Broker) broadcast(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = &e
	for id, sub := range b.subscribers {
		if !sub.wants(e) {
			continue
		}
		select {
		case sub.events <- e:
		default:
			b.log.Warn("Event stream client too slow, disconnecting",
				infralogger.String("event_type", e.Type),
			)
			delete(b.subscribers, id)
			close(sub.events)
		}
	}
}

func (b *Broker) drop(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.events)
	}
}

func (b *Broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.events)
	}
}
