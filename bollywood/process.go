// File: bollywood/process.go
package bollywood

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Process is the running instance of an actor: its name, mailbox and
// goroutines. It is also the handle other components hold on to.
type Process struct {
	engine   *Engine
	name     string
	behavior Behavior
	mailbox  *Mailbox
	log      *logrus.Entry

	ctx    context.Context // Cancelled on Stop or when a sub-goroutine fails
	cancel context.CancelFunc
	group  *errgroup.Group

	mu       sync.Mutex // Guards started/stopped transitions
	started  bool
	stopped  bool
	stopOnce sync.Once
	teardown sync.Once
	exited   chan struct{}
}

func newProcess(engine *Engine, name string, behavior Behavior) *Process {
	base, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(base)
	return &Process{
		engine:   engine,
		name:     name,
		behavior: behavior,
		mailbox:  NewMailbox(),
		log:      engine.logger.WithField("actor", name),
		ctx:      ctx,
		cancel:   cancel,
		group:    group,
		exited:   make(chan struct{}),
	}
}

// Name returns the registered name of the actor.
func (p *Process) Name() string { return p.name }

// Behavior returns the actor implementation driven by this process.
func (p *Process) Behavior() Behavior { return p.behavior }

// Post enqueues msg in the actor's mailbox without blocking.
func (p *Process) Post(msg Message) error {
	return p.mailbox.Put(msg)
}

// Pending returns the number of messages waiting in the mailbox.
func (p *Process) Pending() int { return p.mailbox.Len() }

// Start registers the actor and launches its goroutine. Starting twice is a
// no-op; starting after Stop fails.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return fmt.Errorf("start %s: %w", p.name, ErrProcessStopped)
	}
	if p.started {
		return nil
	}
	if p.engine.stopping.Load() {
		return fmt.Errorf("start %s: %w", p.name, ErrEngineStopping)
	}
	p.started = true
	p.engine.registry.Register(p.name, p)
	go p.run()
	return nil
}

// Stop deregisters the actor, cancels its blocking waits and waits for its
// goroutines to exit. OnStop has run by the time Stop returns. Stop must not
// be called from the actor's own goroutines; an actor finishes on its own by
// returning from Run.
func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		started := p.started
		p.mu.Unlock()

		p.engine.registry.release(p.name, p)
		p.cancel()
		if started {
			<-p.exited
		}
		p.mailbox.Close()
		p.engine.forget(p)
	})
}

// Alive reports whether the actor goroutine is still running.
func (p *Process) Alive() bool {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Done is closed once the actor goroutine has exited and OnStop has run.
func (p *Process) Done() <-chan struct{} { return p.exited }

// run is the actor goroutine.
func (p *Process) run() {
	ctx := &actorContext{p: p}
	defer close(p.exited)
	defer p.finish(ctx)

	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("Actor %s panicked: %v\nStack trace:\n%s", p.name, r, string(debug.Stack()))
			p.cancel()
		}
	}()

	p.behavior.OnStart(ctx)
	if runner, ok := p.behavior.(Runner); ok {
		runner.Run(ctx)
		// Sub-goroutines outlive Run only until the actor is done.
		p.cancel()
		return
	}
	<-p.ctx.Done()
}

// finish waits for sub-goroutines and invokes OnStop exactly once.
func (p *Process) finish(ctx Context) {
	if err := p.group.Wait(); err != nil {
		p.log.WithError(err).Error("sub-goroutine failed")
	}
	p.teardown.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Errorf("Actor %s panicked during OnStop: %v\nStack trace:\n%s", p.name, r, string(debug.Stack()))
			}
		}()
		p.behavior.OnStop(ctx)
	})
}

// goSub runs fn under the actor's errgroup. A panic in fn stops the actor.
func (p *Process) goSub(fn func(ctx Context)) {
	p.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				p.log.Errorf("Actor %s sub-goroutine panicked: %v\nStack trace:\n%s", p.name, r, string(debug.Stack()))
				err = fmt.Errorf("actor %s: sub-goroutine panicked: %v", p.name, r)
			}
		}()
		fn(&actorContext{p: p})
		return nil
	})
}
