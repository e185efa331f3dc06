// Package broker forwards domain events to RabbitMQ.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Publish when the outbound buffer has no room left.
	ErrQueueFull = errors.New("broker: queue full")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("broker: publisher closed")

	errBackingOff = errors.New("broker: reconnect backing off")
)

const (
	defaultExchange    = "evslot.events"
	defaultBuffer      = 256
	defaultDialTimeout = 5 * time.Second
	defaultMinBackoff  = 500 * time.Millisecond
	defaultMaxBackoff  = 30 * time.Second
)

// Options tunes the publisher.
type Options struct {
	Exchange string
	// Buffer is the number of events queued while the sender is busy.
	Buffer int
	// DialTimeout bounds the TCP dial plus AMQP handshake, and each publish.
	DialTimeout time.Duration
	// MinBackoff and MaxBackoff bound the wait between failed dials.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

type message struct {
	event string
	body  []byte
	at    time.Time
}

// Publisher sends every event to a durable topic exchange with the event name as routing key.
// Publish only enqueues; a single goroutine owns the connection, opens it lazily and re-dials
// with exponential backoff after a failure. Events that arrive while the broker is unreachable
// are dropped.
type Publisher struct {
	url         string
	exchange    string
	dialTimeout time.Duration
	minBackoff  time.Duration
	maxBackoff  time.Duration
	logger      *zap.Logger

	dial func(url string) (*amqp.Connection, error)
	now  func() time.Time

	mu     sync.Mutex
	closed bool
	queue  chan message
	done   chan struct{}

	// owned by the send loop
	conn     *amqp.Connection
	ch       *amqp.Channel
	backoff  time.Duration
	nextDial time.Time
	closeErr error
}

// NewPublisher builds a publisher and starts its send loop. No connection is made until the
// first event is sent.
func NewPublisher(url string, opts Options, logger *zap.Logger) *Publisher {
	if opts.Exchange == "" {
		opts.Exchange = defaultExchange
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = defaultMaxBackoff
		if opts.MaxBackoff < opts.MinBackoff {
			opts.MaxBackoff = opts.MinBackoff
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Publisher{
		url:         url,
		exchange:    opts.Exchange,
		dialTimeout: opts.DialTimeout,
		minBackoff:  opts.MinBackoff,
		maxBackoff:  opts.MaxBackoff,
		logger:      logger,
		now:         time.Now,
		queue:       make(chan message, opts.Buffer),
		done:        make(chan struct{}),
	}
	p.dial = func(url string) (*amqp.Connection, error) {
		return amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
	}
	go p.run()
	return p
}

// Publish queues payload as a persistent JSON message without waiting for the broker.
func (p *Publisher) Publish(ctx context.Context, event string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("broker: marshal %s: %w", event, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- message{event: event, body: body, at: time.Now().UTC()}:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, event)
	}
}

// Close stops accepting events, sends what is already queued and releases the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	<-p.done
	return p.closeErr
}

func (p *Publisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		err := p.send(msg)
		switch {
		case err == nil:
		case errors.Is(err, errBackingOff):
			p.logger.Debug("event dropped while broker unavailable", zap.String("event", msg.event))
		default:
			p.logger.Warn("event dropped", zap.String("event", msg.event), zap.Error(err))
		}
	}
	p.closeErr = p.reset()
}

func (p *Publisher) send(msg message) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.dialTimeout)
	defer cancel()
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.at,
		Type:         msg.event,
		Body:         msg.body,
	}
	if err := ch.PublishWithContext(ctx, p.exchange, msg.event, false, false, pub); err != nil {
		_ = p.reset()
		return fmt.Errorf("broker: publish %s: %w", msg.event, err)
	}
	return nil
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	_ = p.reset()
	if p.now().Before(p.nextDial) {
		return nil, errBackingOff
	}

	ch, err := p.connect()
	if err != nil {
		p.backoff = nextBackoff(p.backoff, p.minBackoff, p.maxBackoff)
		p.nextDial = p.now().Add(p.backoff)
		p.logger.Warn("broker unavailable", zap.Duration("retry_in", p.backoff), zap.Error(err))
		return nil, err
	}
	p.backoff = 0
	p.logger.Info("broker connected", zap.String("exchange", p.exchange))
	return ch, nil
}

func (p *Publisher) connect() (*amqp.Channel, error) {
	conn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("broker: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("broker: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("broker: declare exchange %s: %w", p.exchange, err)
	}

	p.conn = conn
	p.ch = ch
	return ch, nil
}

func (p *Publisher) reset() error {
	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.conn = nil
	}
	return errors.Join(errs...)
}

func nextBackoff(current, floor, ceiling time.Duration) time.Duration {
	if current < floor {
		return floor
	}
	if current*2 > ceiling {
		return ceiling
	}
	return current * 2
}
