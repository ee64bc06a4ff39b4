// File: market/simulation.go
package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lguibr/bazaar/bollywood"
	"github.com/lguibr/bazaar/utils"
)

// Simulation creates sellers and buyers on an engine and drives buying
// cycles. Sellers live for the whole simulation; buyers are created, run and
// cleared once per cycle.
type Simulation struct {
	engine *bollywood.Engine
	cfg    utils.Config
	bus    *Bus
	log    *logrus.Entry

	mu      sync.Mutex
	sellers []*Seller
	buyers  []*Buyer
}

// NewSimulation wires a simulation to engine. bus may be nil.
func NewSimulation(engine *bollywood.Engine, cfg utils.Config, bus *Bus) *Simulation {
	return &Simulation{
		engine: engine,
		cfg:    cfg,
		bus:    bus,
		log:    engine.Logger().WithField("component", "simulation"),
	}
}

// Engine returns the engine the agents run on.
func (s *Simulation) Engine() *bollywood.Engine { return s.engine }

// Bus returns the event bus, possibly nil.
func (s *Simulation) Bus() *Bus { return s.bus }

// CreateSeller creates a seller with an empty catalogue. It is registered
// when the agents are started.
func (s *Simulation) CreateSeller(name string) (*Seller, error) {
	name = strings.TrimSpace(name)
	catalogue := NewCatalogue(s.engine.Logger().WithField("actor", name))
	actor := NewSellerActor(catalogue, s.cfg)
	proc, err := s.engine.Create(name, actor)
	if err != nil {
		return nil, fmt.Errorf("create seller: %w", err)
	}
	if s.bus != nil {
		catalogue.Watch(catalogueEvents{seller: name, bus: s.bus})
	}

	seller := &Seller{actor: actor, proc: proc}
	s.mu.Lock()
	s.sellers = append(s.sellers, seller)
	s.mu.Unlock()
	return seller, nil
}

// Seller returns the seller created under name.
func (s *Simulation) Seller(name string) (*Seller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seller := range s.sellers {
		if seller.Name() == name {
			return seller, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnknownSeller)
}

// Sellers returns every seller in creation order.
func (s *Simulation) Sellers() []*Seller {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Seller, len(s.sellers))
	copy(out, s.sellers)
	return out
}

// SellerNames returns the names of every seller in creation order.
func (s *Simulation) SellerNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sellers))
	for _, seller := range s.sellers {
		names = append(names, seller.Name())
	}
	return names
}

// CreateBuyer creates a buyer for target. It knows the sellers created so far
// and nothing created later.
func (s *Simulation) CreateBuyer(name, target string, interval time.Duration) (*Buyer, error) {
	actor, err := NewBuyerActor(target, s.SellerNames(), interval, s.cfg, s.bus)
	if err != nil {
		return nil, fmt.Errorf("create buyer %s: %w", name, err)
	}
	proc, err := s.engine.Create(name, actor)
	if err != nil {
		return nil, fmt.Errorf("create buyer: %w", err)
	}

	buyer := &Buyer{actor: actor, proc: proc}
	s.mu.Lock()
	s.buyers = append(s.buyers, buyer)
	s.mu.Unlock()
	return buyer, nil
}

// Buyers returns the buyers of the current cycle.
func (s *Simulation) Buyers() []*Buyer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Buyer, len(s.buyers))
	copy(out, s.buyers)
	return out
}

// StartAgents starts every seller, gives them SellerStartupDelay to settle
// and then starts every buyer.
func (s *Simulation) StartAgents(ctx context.Context) error {
	s.log.Info("=== Starting Book Trading Simulation ===")
	for _, seller := range s.Sellers() {
		if err := seller.Start(); err != nil {
			return fmt.Errorf("start seller %s: %w", seller.Name(), err)
		}
	}

	if s.cfg.SellerStartupDelay > 0 {
		timer := time.NewTimer(s.cfg.SellerStartupDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return s.StartBuyers()
}

// StartBuyers starts every buyer of the current cycle.
func (s *Simulation) StartBuyers() error {
	for _, buyer := range s.Buyers() {
		if err := buyer.Start(); err != nil {
			return fmt.Errorf("start buyer %s: %w", buyer.Name(), err)
		}
	}
	return nil
}

// WaitForCompletion polls the buyers every CompletionPoll until each one is
// complete or no longer running. It reports false on timeout or cancellation.
func (s *Simulation) WaitForCompletion(ctx context.Context, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.cfg.CompletionPoll)
	defer ticker.Stop()

	for {
		if s.buyersSettled() {
			s.log.Info("=== All buyer agents completed ===")
			return true
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			s.log.Warn("=== Timeout reached ===")
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (s *Simulation) buyersSettled() bool {
	for _, buyer := range s.Buyers() {
		if !buyer.IsComplete() && buyer.Alive() {
			return false
		}
	}
	return true
}

// StopBuyers stops every buyer of the current cycle concurrently.
func (s *Simulation) StopBuyers() {
	stopAll(s.Buyers(), func(b *Buyer) { b.Stop() })
}

// ClearBuyers forgets the buyers of the current cycle so a new cycle can
// reuse their names.
func (s *Simulation) ClearBuyers() {
	s.mu.Lock()
	s.buyers = nil
	s.mu.Unlock()
}

// StopAgents stops the buyers, then the sellers.
func (s *Simulation) StopAgents() {
	s.log.Info("=== Stopping all agents ===")
	s.StopBuyers()
	stopAll(s.Sellers(), func(seller *Seller) { seller.Stop() })
}

func stopAll[T any](items []T, stop func(T)) {
	var g errgroup.Group
	for _, item := range items {
		item := item
		g.Go(func() error {
			stop(item)
			return nil
		})
	}
	_ = g.Wait()
}
