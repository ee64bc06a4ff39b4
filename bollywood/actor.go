// File: bollywood/actor.go
package bollywood

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Behavior is the contract every actor implements. The engine owns the
// goroutine and calls OnStart once after the actor is registered and OnStop
// exactly once when it winds down.
type Behavior interface {
	OnStart(ctx Context)
	OnStop(ctx Context)
}

// Runner is implemented by actors that drive their own main loop. Run is
// called on the actor goroutine right after OnStart; the actor finishes when
// Run returns. Actors without Run stay idle until stopped.
type Runner interface {
	Run(ctx Context)
}

// Context gives an actor access to its own mailbox and to the rest of the
// system. It is only valid on the actor goroutine and the sub-goroutines the
// actor launches with Go.
type Context interface {
	// Self returns the name the actor is registered under.
	Self() string
	// Engine returns the engine managing this actor.
	Engine() *Engine
	// Logger returns a logger tagged with the actor name.
	Logger() *logrus.Entry
	// Done is closed when the actor is asked to stop.
	Done() <-chan struct{}
	// Stopping reports whether Done has been closed.
	Stopping() bool

	// Send stamps the actor name as sender and routes msg by receiver name.
	Send(msg Message) error
	// Take blocks for the next message; false once the actor is stopping.
	Take() (Message, bool)
	// Poll waits up to d for the next message.
	Poll(d time.Duration) (Message, bool)
	// ReceiveMatching waits up to d for the first message with performative p,
	// leaving every other message queued in order.
	ReceiveMatching(p Performative, d time.Duration) (Message, bool)

	// Go runs fn on a sub-goroutine owned by the actor. The actor does not
	// finish, and OnStop does not run, until every such goroutine returns.
	Go(fn func(ctx Context))
	// Sleep pauses for d; it returns false if the actor was stopped meanwhile.
	Sleep(d time.Duration) bool
}

// actorContext implements Context for a process.
type actorContext struct {
	p *Process
}

func (c *actorContext) Self() string          { return c.p.name }
func (c *actorContext) Engine() *Engine       { return c.p.engine }
func (c *actorContext) Logger() *logrus.Entry { return c.p.log }
func (c *actorContext) Done() <-chan struct{} { return c.p.ctx.Done() }

func (c *actorContext) Stopping() bool {
	select {
	case <-c.p.ctx.Done():
		return true
	default:
		return false
	}
}

func (c *actorContext) Send(msg Message) error {
	msg.Sender = c.p.name
	return c.p.engine.Send(msg)
}

func (c *actorContext) Take() (Message, bool) {
	msg, err := c.p.mailbox.Take(c.p.ctx)
	return msg, err == nil
}

func (c *actorContext) Poll(d time.Duration) (Message, bool) {
	return c.p.mailbox.Poll(c.p.ctx, d)
}

func (c *actorContext) ReceiveMatching(p Performative, d time.Duration) (Message, bool) {
	return c.p.mailbox.ReceiveMatching(c.p.ctx, p, d)
}

func (c *actorContext) Go(fn func(ctx Context)) {
	c.p.goSub(fn)
}

func (c *actorContext) Sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.p.ctx.Done():
		return false
	}
}
