// Package natsbus publishes JSON events to a NATS subject behind a circuit breaker.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Conn is the slice of *nats.Conn the publisher needs.
type Conn interface {
	PublishMsg(msg *nats.Msg) error
}

// Options tunes the breaker that guards publishing.
type Options struct {
	Subject          string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Publisher serialises values of type T and publishes them on one subject.
// Once the breaker opens, publishes fail fast with gobreaker.ErrOpenState
// until OpenTimeout elapses.
type Publisher[T any] struct {
	conn    Conn
	subject string
	breaker *gobreaker.CircuitBreaker[interface{}]
	logger  zerolog.Logger
}

// Connect dials NATS with reconnects enabled.
func Connect(url, name string, logger zerolog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return conn, nil
}

// NewPublisher wraps conn. A zero FailureThreshold defaults to 5 and a zero
// OpenTimeout to 30 seconds.
func NewPublisher[T any](conn Conn, opts Options, logger zerolog.Logger) (*Publisher[T], error) {
	if conn == nil {
		return nil, errors.New("nats connection is required")
	}
	subject := strings.TrimSpace(opts.Subject)
	if subject == "" {
		return nil, errors.New("nats subject is required")
	}
	threshold := opts.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := opts.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	log := logger.With().Str("component", "natsbus").Str("subject", subject).Logger()
	breaker := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:    "natsbus:" + subject,
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("publish breaker state changed")
		},
	})

	return &Publisher[T]{conn: conn, subject: subject, breaker: breaker, logger: log}, nil
}

// Publish encodes value and sends it. Each message carries a unique
// Nats-Msg-Id header so JetStream consumers can deduplicate retries.
func (p *Publisher[T]) Publish(ctx context.Context, value T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = payload
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.conn.PublishMsg(msg)
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

// State reports the breaker state, for health output.
func (p *Publisher[T]) State() string {
	return p.breaker.State().String()
}
