package market

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/lguibr/bazaar/bollywood"
	"github.com/lguibr/bazaar/utils"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestSimulation returns a simulation on a fresh registry with fast
// windows. Everything is stopped when the test ends.
func newTestSimulation(t *testing.T, mutate ...func(*utils.Config)) (*Simulation, *Bus) {
	t.Helper()
	cfg := utils.FastConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	logger := quietLogger()
	engine := bollywood.NewEngine(bollywood.NewRegistry(), logger)
	bus := NewBus(logger)
	sim := NewSimulation(engine, cfg, bus)
	t.Cleanup(func() {
		sim.StopAgents()
		_ = engine.Shutdown(cfg.ShutdownTimeout)
	})
	return sim, bus
}

// recorder is a mock actor that captures everything it receives.
type recorder struct {
	mu  sync.Mutex
	got []bollywood.Message
	ch  chan bollywood.Message
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan bollywood.Message, 256)}
}

func (r *recorder) OnStart(ctx bollywood.Context) {}
func (r *recorder) OnStop(ctx bollywood.Context)  {}

func (r *recorder) Run(ctx bollywood.Context) {
	for {
		msg, ok := ctx.Take()
		if !ok {
			return
		}
		r.mu.Lock()
		r.got = append(r.got, msg)
		r.mu.Unlock()
		r.ch <- msg
	}
}

func (r *recorder) Expect(t *testing.T) bollywood.Message {
	t.Helper()
	select {
	case msg := <-r.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting message")
		return bollywood.Message{}
	}
}

func (r *recorder) Received() []bollywood.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bollywood.Message, len(r.got))
	copy(out, r.got)
	return out
}

// scriptedSeller proposes a fixed content to every CFP and answers accepts
// through onAccept. A false third return value leaves the accept unanswered.
type scriptedSeller struct {
	proposal string
	onAccept func(n int) (bollywood.Performative, string, bool)
	cfps     atomic.Int32
	accepts  atomic.Int32
}

func (s *scriptedSeller) OnStart(ctx bollywood.Context) {}
func (s *scriptedSeller) OnStop(ctx bollywood.Context)  {}

func (s *scriptedSeller) Run(ctx bollywood.Context) {
	for {
		msg, ok := ctx.Take()
		if !ok {
			return
		}
		reply := msg.CreateReply()
		switch msg.Performative {
		case bollywood.CFP:
			s.cfps.Add(1)
			reply.Performative = bollywood.Propose
			reply.Content = s.proposal
		case bollywood.AcceptProposal:
			n := int(s.accepts.Add(1))
			if s.onAccept == nil {
				continue
			}
			p, content, respond := s.onAccept(n)
			if !respond {
				continue
			}
			reply.Performative = p
			reply.Content = content
		default:
			continue
		}
		_ = ctx.Send(reply)
	}
}

func spawn(t *testing.T, sim *Simulation, name string, b bollywood.Behavior) *bollywood.Process {
	t.Helper()
	proc, err := sim.Engine().Spawn(name, b)
	require.NoError(t, err)
	return proc
}

// eventLog keeps every event published on a bus during a test.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func recordEvents(t *testing.T, bus *Bus) *eventLog {
	t.Helper()
	sub, err := bus.Subscribe("", 1024)
	require.NoError(t, err)
	log := &eventLog{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub.C {
			log.mu.Lock()
			log.events = append(log.events, ev)
			log.mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		sub.Cancel()
		<-done
	})
	return log
}

func (l *eventLog) Count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func waitDone(t *testing.T, b *Buyer) Outcome {
	t.Helper()
	require.Eventually(t, b.IsComplete, 5*time.Second, 5*time.Millisecond, "buyer %s did not finish", b.Name())
	return b.Outcome()
}
