package store

import "encoding/json"

// Feed is a Subscription whose snapshots are decoded into T.
type Feed[T any] struct {
	C   <-chan T
	sub *Subscription
}

func NewFeed[T any](sub *Subscription, decode func(json.RawMessage) T) *Feed[T] {
	out := make(chan T)
	go func() {
		defer close(out)
		for raw := range sub.C {
			value := decode(raw)
			select {
			case out <- value:
			case <-sub.done:
				return
			}
		}
	}()
	return &Feed[T]{C: out, sub: sub}
}

func (f *Feed[T]) Close() error {
	return f.sub.Close()
}

func (f *Feed[T]) Done() <-chan struct{} {
	return f.sub.done
}
