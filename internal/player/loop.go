package player

import (
	"errors"
	"sync"
)

// ErrLoopClosed is returned when work is submitted to a closed Loop
var ErrLoopClosed = errors.New("player loop has been closed")

const defaultLoopBuffer = 64

// Loop runs submitted functions one at a time, in order, on a single
// goroutine. It is the sequential context all controller state lives on.
type Loop struct {
	tasks     chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewLoop starts a loop goroutine
func NewLoop() *Loop {
	l := &Loop{
		tasks: make(chan func(), defaultLoopBuffer),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

// Post queues f and returns immediately. It reports false if the loop is closed.
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}

	select {
	case l.tasks <- f:
		return true
	case <-l.quit:
		return false
	}
}

// Call runs f on the loop and waits for it to return. It must not be called
// from the loop goroutine itself.
func (l *Loop) Call(f func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		f()
	}) {
		return ErrLoopClosed
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// Close may win the race against a queued task
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopClosed
		}
	}
}

// Close stops the loop after the task in progress and waits for the goroutine
// to exit. Queued tasks that have not started are dropped.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.quit)
	})
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		select {
		case <-l.quit:
			return
		case f := <-l.tasks:
			f()
		}
	}
}
