// File: bollywood/engine.go
package bollywood

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Engine creates actors, routes messages between them by name and shuts
// them down. The registry is injected so tests can run with a fresh one.
type Engine struct {
	registry  *Registry
	logger    *logrus.Logger
	log       *logrus.Entry
	processes map[*Process]struct{}
	mu        sync.RWMutex // Protects the processes set
	stopping  atomic.Bool  // Indicates if the engine is shutting down
}

// NewEngine creates an engine routing through registry. A nil logger falls
// back to the logrus standard logger.
func NewEngine(registry *Registry, logger *logrus.Logger) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		registry:  registry,
		logger:    logger,
		log:       logger.WithField("component", "engine"),
		processes: make(map[*Process]struct{}),
	}
}

// Registry returns the name directory used for routing.
func (e *Engine) Registry() *Registry { return e.registry }

// Logger returns the logger actors derive their entries from.
func (e *Engine) Logger() *logrus.Logger { return e.logger }

// Create builds a process for behavior without starting it. The actor is
// only registered once started.
func (e *Engine) Create(name string, behavior Behavior) (*Process, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if behavior == nil {
		return nil, fmt.Errorf("create %s: behavior is nil", name)
	}
	if e.stopping.Load() {
		return nil, fmt.Errorf("create %s: %w", name, ErrEngineStopping)
	}

	proc := newProcess(e, name, behavior)
	e.mu.Lock()
	e.processes[proc] = struct{}{}
	e.mu.Unlock()
	return proc, nil
}

// Spawn creates and starts an actor.
func (e *Engine) Spawn(name string, behavior Behavior) (*Process, error) {
	proc, err := e.Create(name, behavior)
	if err != nil {
		return nil, err
	}
	if err := proc.Start(); err != nil {
		e.forget(proc)
		return nil, err
	}
	return proc, nil
}

// Send routes msg to the actor registered under msg.Receiver. Unknown
// receivers are logged and the message is dropped; the sender never blocks.
func (e *Engine) Send(msg Message) error {
	if msg.Receiver == "" {
		e.log.WithField("sender", msg.Sender).Error("Cannot send message with no receiver")
		return ErrNoReceiver
	}
	handle, ok := e.registry.Find(msg.Receiver)
	if !ok {
		e.log.WithFields(logrus.Fields{
			"sender":   msg.Sender,
			"receiver": msg.Receiver,
		}).Errorf("Recipient not found, dropping %s", msg.Performative)
		return fmt.Errorf("send to %s: %w", msg.Receiver, ErrUnknownReceiver)
	}
	if err := handle.Post(msg); err != nil {
		e.log.WithError(err).WithField("receiver", msg.Receiver).Errorf("Failed to deliver %s", msg.Performative)
		return fmt.Errorf("send to %s: %w", msg.Receiver, err)
	}
	e.log.WithFields(logrus.Fields{
		"sender":   msg.Sender,
		"receiver": msg.Receiver,
	}).Debugf("Sent %s: %s", msg.Performative, msg.Content)
	return nil
}

// Processes returns a snapshot of every process not yet stopped.
func (e *Engine) Processes() []*Process {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Process, 0, len(e.processes))
	for p := range e.processes {
		out = append(out, p)
	}
	return out
}

// forget drops a stopped process from the engine's tracking.
func (e *Engine) forget(p *Process) {
	e.mu.Lock()
	delete(e.processes, p)
	e.mu.Unlock()
}

// Shutdown stops every actor concurrently and waits up to timeout for them.
func (e *Engine) Shutdown(timeout time.Duration) error {
	if !e.stopping.CompareAndSwap(false, true) {
		e.log.Warn("Engine already shutting down")
		return nil
	}
	procs := e.Processes()
	e.log.Infof("Stopping %d actors...", len(procs))

	var g errgroup.Group
	for _, p := range procs {
		p := p
		g.Go(func() error {
			p.Stop()
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.log.Info("All actors stopped.")
		return nil
	case <-time.After(timeout):
		remaining := len(e.Processes())
		e.log.Warnf("Engine shutdown timeout: %d actors did not stop gracefully.", remaining)
		return fmt.Errorf("%w: %d actors remaining", ErrShutdownTimeout, remaining)
	}
}
