package future

import "sync"

// Future is the completion signal of an asynchronous world action.
// Err is only meaningful after Done is closed.
type Future interface {
	Done() <-chan struct{}
	Err() error
}

// Promise is a Future resolved exactly once by its producer.
type Promise struct {
	once sync.Once
	done chan struct{}
	err  error
}

func New() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolve completes the promise. Later calls are ignored and report false.
func (p *Promise) Resolve(err error) bool {
	ok := false
	p.once.Do(func() {
		p.err = err
		close(p.done)
		ok = true
	})
	return ok
}

func (p *Promise) Done() <-chan struct{} { return p.done }

func (p *Promise) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Resolved returns a promise that is already complete.
func Resolved(err error) *Promise {
	p := New()
	p.Resolve(err)
	return p
}
