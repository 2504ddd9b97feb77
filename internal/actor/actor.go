// Package actor is a minimal in-process actor runtime: each actor owns a
// bounded mailbox and processes one message at a time, so state behind an
// actor needs no further locking. There is no remote transport and no
// supervision beyond Start/Stop.
package actor

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"
)

var (
	ErrAlreadyRunning = errors.New("actor: already running")
	ErrNotRunning     = errors.New("actor: not running")
	ErrAskTimeout     = errors.New("actor: ask timed out")
	ErrStopped        = errors.New("actor: stopped while waiting for reply")
)

// Behavior is the message-handling half of an actor. Receive is invoked for
// one envelope at a time; returning (value, nil) resolves an Ask, returning
// an error fails it. Each behavior should accept a closed set of message
// struct types dispatched with a type switch.
type Behavior interface {
	// OnStart runs before the first message. An error aborts Start.
	OnStart(ctx context.Context) error
	// OnStop runs during Stop, before the loop is cancelled.
	OnStop()
	Receive(ctx context.Context, msg any) (any, error)
}

type result struct {
	value any
	err   error
}

type envelope struct {
	msg   any
	reply chan result // nil for Tell
}

// Actor wraps a Behavior with a named, bounded mailbox and a sequential
// processing loop. An Actor is exclusively owned by whoever started it.
type Actor struct {
	name     string
	behavior Behavior
	log      *log.Logger

	mailbox chan envelope

	mu       sync.Mutex
	running  bool
	stopping bool
	pending  map[chan result]struct{}
	cancel  context.CancelFunc
	stopped chan struct{} // closed on Stop; releases outstanding asks
	done    chan struct{} // closed when the loop exits
}

// New builds an idle actor. mailboxSize bounds the queue; sends beyond it
// block the sender (backpressure). A nil logger falls back to stderr.
func New(name string, behavior Behavior, mailboxSize int, logger *log.Logger) *Actor {
	if mailboxSize <= 0 {
		mailboxSize = 100
	}
	if logger == nil {
		logger = log.New(os.Stderr, "["+name+"] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Actor{
		name:     name,
		behavior: behavior,
		log:      logger,
		mailbox:  make(chan envelope, mailboxSize),
		pending:  map[chan result]struct{}{},
	}
}

func (a *Actor) Name() string { return a.name }

// Start spawns the mailbox loop and runs OnStart. An OnStart failure tears
// the loop back down and is returned to the caller.
func (a *Actor) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	a.running = true
	a.stopping = false
	a.cancel = cancel
	a.stopped = make(chan struct{})
	a.done = make(chan struct{})
	done := a.done
	a.mu.Unlock()

	go a.loop(loopCtx, done)

	if err := a.behavior.OnStart(ctx); err != nil {
		a.teardown()
		return err
	}
	return nil
}

// Stop runs OnStop, cancels the loop, and releases every outstanding Ask so
// no caller hangs. Stopping an idle actor is a no-op.
func (a *Actor) Stop() {
	a.mu.Lock()
	if !a.running || a.stopping {
		done := a.done
		a.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	// Claimed under the same lock as the check, so concurrent Stops cannot
	// both reach OnStop.
	a.stopping = true
	a.mu.Unlock()

	a.behavior.OnStop()
	a.teardown()
}

func (a *Actor) teardown() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.cancel()
	close(a.stopped)
	for ch := range a.pending {
		delete(a.pending, ch)
	}
	done := a.done
	a.mu.Unlock()
	<-done
}

// Tell enqueues a fire-and-forget message. A handler error for a Tell is
// logged, never delivered.
func (a *Actor) Tell(msg any) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return ErrNotRunning
	}
	stopped := a.stopped
	a.mu.Unlock()

	select {
	case a.mailbox <- envelope{msg: msg}:
		return nil
	case <-stopped:
		return ErrNotRunning
	}
}

// Ask enqueues a message with a reply slot and waits for the handler's
// result, the timeout, or Stop. On timeout the wait is abandoned; the
// message may still be processed but its result goes unobserved.
func (a *Actor) Ask(ctx context.Context, msg any, timeout time.Duration) (any, error) {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil, ErrNotRunning
	}
	reply := make(chan result, 1)
	a.pending[reply] = struct{}{}
	stopped := a.stopped
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.pending, reply)
		a.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case a.mailbox <- envelope{msg: msg, reply: reply}:
	case <-stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrAskTimeout
	}

	select {
	case res := <-reply:
		return res.value, res.err
	case <-stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrAskTimeout
	}
}

func (a *Actor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-a.mailbox:
			a.handle(ctx, env)
		}
	}
}

func (a *Actor) handle(ctx context.Context, env envelope) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Printf("panic in %s handler: %v", a.name, r)
			if env.reply != nil {
				env.reply <- result{err: errors.New("actor: handler panicked")}
			}
		}
	}()

	value, err := a.behavior.Receive(ctx, env.msg)
	if env.reply != nil {
		env.reply <- result{value: value, err: err}
		return
	}
	if err != nil {
		a.log.Printf("%s: error handling %T: %v", a.name, env.msg, err)
	}
}
