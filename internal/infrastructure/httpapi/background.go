package httpapi

import (
	"context"
	"sync"
)

// BackgroundTasks runs work that outlives the request that started it,
// such as asynchronous imports, so shutdown can wait for it or cancel it.
type BackgroundTasks struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBackgroundTasks creates an empty task group
func NewBackgroundTasks() *BackgroundTasks {
	ctx, cancel := context.WithCancel(context.Background())
	return &BackgroundTasks{ctx: ctx, cancel: cancel}
}

// Go starts fn with the group's context
func (b *BackgroundTasks) Go(fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(b.ctx)
	}()
}

// Drain waits for running tasks until ctx is done, then cancels them and
// waits for them to return. It returns ctx.Err() when tasks had to be cancelled.
func (b *BackgroundTasks) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		<-done
		return ctx.Err()
	}
}
