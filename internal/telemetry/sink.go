package telemetry

import (
	"context"
	"errors"
	"sync"
)

// Sink receives encoded batches. Send is called with the pipeline lock
// held, so an implementation must not call back into the pipeline.
type Sink interface {
	Send(ctx context.Context, batch []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, batch []byte) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, batch []byte) error {
	return f(ctx, batch)
}

// Broadcaster fans each batch out to an explicit list of subscribers.
//
// Every subscriber sees every batch; the errors of failed subscribers
// are joined.
type Broadcaster struct {
	mu   sync.RWMutex
	subs []Sink
}

// NewBroadcaster creates a broadcaster with the given subscribers.
func NewBroadcaster(subs ...Sink) *Broadcaster {
	return &Broadcaster{subs: subs}
}

// Subscribe adds s to the subscriber list.
func (b *Broadcaster) Subscribe(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Send implements Sink.
func (b *Broadcaster) Send(ctx context.Context, batch []byte) error {
	b.mu.RLock()
	subs := append([]Sink(nil), b.subs...)
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := s.Send(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChannelSink publishes batches onto a channel. Send blocks until the
// batch is received or ctx is done.
type ChannelSink chan []byte

// Send implements Sink.
func (c ChannelSink) Send(ctx context.Context, batch []byte) error {
	select {
	case c <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ Sink = SinkFunc(nil)
	_ Sink = (*Broadcaster)(nil)
	_ Sink = ChannelSink(nil)
)
