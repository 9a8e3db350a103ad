package natsbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"
)

type event struct {
	Action string `json:"action"`
	ID     uint   `json:"id"`
}

type fakeConn struct {
	mu       sync.Mutex
	err      error
	messages []*nats.Msg
	calls    int
}

func (f *fakeConn) PublishMsg(msg *nats.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func TestPublishEncodesJSONWithHeaders(t *testing.T) {
	conn := &fakeConn{}
	publisher, err := NewPublisher[event](conn, Options{Subject: "campus.audit"}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(context.Background(), event{Action: "created", ID: 7}))
	require.NoError(t, publisher.Publish(context.Background(), event{Action: "deleted", ID: 7}))

	require.Len(t, conn.messages, 2)
	first := conn.messages[0]
	require.Equal(t, "campus.audit", first.Subject)
	require.Equal(t, "application/json", first.Header.Get("Content-Type"))
	require.NotEmpty(t, first.Header.Get(nats.MsgIdHdr))
	require.NotEqual(t, first.Header.Get(nats.MsgIdHdr), conn.messages[1].Header.Get(nats.MsgIdHdr))

	var decoded event
	require.NoError(t, json.Unmarshal(first.Data, &decoded))
	require.Equal(t, event{Action: "created", ID: 7}, decoded)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	conn := &fakeConn{err: errors.New("no responders")}
	publisher, err := NewPublisher[event](conn, Options{Subject: "campus.audit", FailureThreshold: 2, OpenTimeout: time.Minute}, zerolog.Nop())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.ErrorContains(t, publisher.Publish(context.Background(), event{ID: uint(i)}), "no responders")
	}
	require.Equal(t, "open", publisher.State())

	err = publisher.Publish(context.Background(), event{ID: 3})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, 2, conn.calls)
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	conn := &fakeConn{}
	publisher, err := NewPublisher[event](conn, Options{Subject: "campus.audit"}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, publisher.Publish(ctx, event{}), context.Canceled)
	require.Zero(t, conn.calls)
}

func TestNewPublisherValidatesArguments(t *testing.T) {
	_, err := NewPublisher[event](nil, Options{Subject: "x"}, zerolog.Nop())
	require.Error(t, err)

	_, err = NewPublisher[event](&fakeConn{}, Options{Subject: "  "}, zerolog.Nop())
	require.Error(t, err)
}
