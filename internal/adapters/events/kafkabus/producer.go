package kafkabus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"clinical-consent/internal/platform/logger"
	"clinical-consent/internal/ports/events"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultBuffer       = 256

	// un mensaje por flush: no esperar a llenar el batch
	batchSize    = 1
	batchTimeout = 5 * time.Millisecond

	publishTimeout = 5 * time.Second
)

var (
	ErrNoBrokers = errors.New("kafka: at least one broker is required")
	ErrQueueFull = errors.New("kafka: publish queue full")
	ErrClosed    = errors.New("kafka: producer closed")
)

type Config struct {
	Brokers  []string
	Topic    string
	Username string
	Password string

	// Buffer es la cantidad de eventos en espera antes de descartar.
	Buffer int
	Logger logger.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publica eventos de consentimiento y tokens en un topic.
// Publish solo encola; la escritura al broker corre en una goroutine propia
// para no sumar latencia al request.
type Producer struct {
	writer messageWriter
	log    logger.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan kafka.Message
	done   chan struct{}
}

var _ events.Publisher = (*Producer)(nil)

func NewProducer(cfg Config) (*Producer, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka: topic is required")
	}

	w := newWriter(brokers, cfg)
	return newProducer(w, cfg.Buffer, cfg.Logger), nil
}

func newWriter(brokers []string, cfg Config) *kafka.Writer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    batchSize,
		BatchTimeout: batchTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
	// SASL/TLS sólo para clusters gestionados.
	if cfg.Username != "" {
		w.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.Username, Password: cfg.Password},
			TLS:  &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}
	return w
}

func newProducer(w messageWriter, buffer int, log logger.Logger) *Producer {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = logger.Nop()
	}
	p := &Producer{
		writer: w,
		log:    log,
		now:    time.Now,
		queue:  make(chan kafka.Message, buffer),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

// Publish usa patient_id como key para mantener el orden por paciente.
// No bloquea: si la cola está llena devuelve ErrQueueFull.
func (p *Producer) Publish(_ context.Context, evt events.Event) error {
	if p == nil || p.writer == nil {
		return nil
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = p.now().UTC()
	}

	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.PatientID),
		Value: value,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Producer) loop() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			p.log.Warn("audit event write failed", map[string]any{
				"key":   string(msg.Key),
				"error": err,
			})
		}
	}
}

// Close deja de aceptar eventos, drena la cola y cierra el writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}
