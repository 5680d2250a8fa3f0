package store

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"timelogger/backend/internal/metrics"
)

// Subscription is a live stream of snapshots of one path. C is closed once
// the subscription ends.
type Subscription struct {
	C      <-chan json.RawMessage
	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops the stream and waits for its goroutine to exit.
func (s *Subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

type ReadFunc func(ctx context.Context) (json.RawMessage, error)

// Watch emits read's result once, then again on each notification whenever
// the value differs from the previous emission. release runs when the stream
// ends.
func Watch(
	ctx context.Context,
	path string,
	read ReadFunc,
	notify <-chan struct{},
	release func(),
	logger zerolog.Logger,
) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan json.RawMessage)
	done := make(chan struct{})

	metrics.ActiveSubscriptions.Inc()
	go func() {
		defer close(done)
		defer close(out)
		defer metrics.ActiveSubscriptions.Dec()
		if release != nil {
			defer release()
		}

		var last json.RawMessage
		emitted := false
		emit := func() bool {
			raw, err := read(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				logger.Warn().Err(err).Str("path", path).Msg("Subscription read failed")
				return true
			}
			if emitted && bytes.Equal(raw, last) {
				return true
			}
			emitted = true
			last = raw
			select {
			case out <- raw:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-notify:
				if !ok || !emit() {
					return
				}
			}
		}
	}()

	return &Subscription{C: out, cancel: cancel, done: done}
}

// Broker fans change notifications out to in-process listeners whose path
// overlaps the changed path. Notifications coalesce per listener.
type Broker struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]brokerListener
}

type brokerListener struct {
	path string
	ch   chan struct{}
}

func NewBroker() *Broker {
	return &Broker{listeners: make(map[int]brokerListener)}
}

func (b *Broker) Listen(path string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = brokerListener{path: path, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

func (b *Broker) Publish(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.listeners {
		if !Overlaps(path, l.path) {
			continue
		}
		select {
		case l.ch <- struct{}{}:
		default:
		}
	}
}

func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
