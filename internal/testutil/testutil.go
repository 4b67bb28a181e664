// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admincore/internal/repository"
)

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Message is one email captured by Transport.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Transport records sent messages. Addresses listed in FailFor fail with
// ErrSend.
type Transport struct {
	mu       sync.Mutex
	messages []Message
	failFor  map[string]bool
}

var ErrSend = errors.New("relay rejected message")

func NewTransport() *Transport {
	return &Transport{failFor: map[string]bool{}}
}

func (t *Transport) FailFor(addrs ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, a := range addrs {
		t.failFor[a] = true
	}
}

func (t *Transport) Heal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failFor = map[string]bool{}
}

func (t *Transport) Send(_ context.Context, to, subject, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failFor[to] {
		return ErrSend
	}
	t.messages = append(t.messages, Message{To: to, Subject: subject, Body: body})
	return nil
}

func (t *Transport) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.messages...)
}

func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}

// SQLiteStore opens an in-memory SQLite store closed with the test.
func SQLiteStore(t *testing.T, now func() time.Time) *repository.SQLiteStore {
	t.Helper()
	s, err := repository.NewSQLiteStore(":memory:", now, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
