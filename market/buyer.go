// File: market/buyer.go
package market

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lguibr/bazaar/bollywood"
	"github.com/lguibr/bazaar/utils"
)

// BuyerState is the position of a buyer in its negotiation loop.
type BuyerState int

const (
	Idle BuyerState = iota
	AwaitingProposals
	SelectingBest
	AwaitingConfirmation
	Done
	Terminated
)

func (s BuyerState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingProposals:
		return "AwaitingProposals"
	case SelectingBest:
		return "SelectingBest"
	case AwaitingConfirmation:
		return "AwaitingConfirmation"
	case Done:
		return "Done"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s BuyerState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Outcome is what a buyer achieved so far. Pending until Done or Terminated.
type Outcome struct {
	State  BuyerState `json:"state"`
	Seller string     `json:"seller,omitempty"`
	Price  int        `json:"price,omitempty"`
	// Assumed is set when no confirmation came back and the purchase was
	// taken as successful.
	Assumed bool   `json:"assumed,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Purchased reports whether the buyer completed a purchase.
func (o Outcome) Purchased() bool { return o.State == Done }

// Proposal is a PROPOSE reply with a usable price.
type Proposal struct {
	Seller string
	Price  int
}

type purchaseResult int

const (
	purchaseConfirmed purchaseResult = iota
	purchaseAssumed
	purchaseRefused
	purchaseUndelivered
	purchaseInterrupted
)

// BuyerActor runs Contract-Net rounds for one title until it buys it or runs
// out of retries. All negotiation fields are owned by the actor goroutine;
// observers go through State, Outcome and IsComplete.
type BuyerActor struct {
	target   string
	sellers  []string
	interval time.Duration
	cfg      utils.Config
	bus      *Bus

	round             int
	noSellerRetries   int
	noProposalRetries int

	mu      sync.RWMutex // Guards state and outcome
	state   BuyerState
	outcome Outcome
}

// NewBuyerActor validates the target and interval and snapshots the seller
// names the buyer will call on.
func NewBuyerActor(target string, sellers []string, interval time.Duration, cfg utils.Config, bus *Bus) (*BuyerActor, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, ErrEmptyTitle
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%s: %w", interval, ErrInvalidInterval)
	}
	known := make([]string, len(sellers))
	copy(known, sellers)
	return &BuyerActor{
		target:   target,
		sellers:  known,
		interval: interval,
		cfg:      cfg,
		bus:      bus,
		state:    Idle,
	}, nil
}

// Target returns the title the buyer is after.
func (b *BuyerActor) Target() string { return b.target }

// State returns the current negotiation state.
func (b *BuyerActor) State() BuyerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Outcome returns the result so far; its State is the live negotiation state.
func (b *BuyerActor) Outcome() Outcome {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := b.outcome
	out.State = b.state
	return out
}

// IsComplete reports whether the buyer has stopped negotiating, either
// because it bought the title or because it gave up.
func (b *BuyerActor) IsComplete() bool {
	s := b.State()
	return s == Done || s == Terminated
}

func (b *BuyerActor) setState(s BuyerState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *BuyerActor) finish(outcome Outcome) {
	b.mu.Lock()
	b.state = outcome.State
	b.outcome = outcome
	b.mu.Unlock()
}

func (b *BuyerActor) OnStart(ctx bollywood.Context) {
	ctx.Logger().Info("Buyer agent ready.")
	ctx.Logger().Infof("Trying to buy: %s", b.target)
}

func (b *BuyerActor) OnStop(ctx bollywood.Context) {
	ctx.Logger().Info("Buyer agent terminating.")
}

// Run repeats negotiation rounds every interval until complete or stopped.
func (b *BuyerActor) Run(ctx bollywood.Context) {
	for !ctx.Stopping() {
		b.runRound(ctx)
		if b.IsComplete() {
			return
		}
		if !ctx.Sleep(b.interval) {
			return
		}
	}
}

func (b *BuyerActor) runRound(ctx bollywood.Context) {
	log := ctx.Logger()

	if len(b.sellers) == 0 {
		b.noSellerRetries++
		log.Warnf("No seller agents available. (Retry %d/%d)", b.noSellerRetries, b.cfg.MaxNoSellerRetries)
		if b.noSellerRetries >= b.cfg.MaxNoSellerRetries {
			b.terminate(ctx, "", "Max retries reached with no sellers. Terminating.")
		}
		return
	}
	b.noSellerRetries = 0

	b.round++
	conversationID := utils.NewConversationID()
	log = log.WithFields(logrus.Fields{"conversation": conversationID, "round": b.round})
	log.Info("=== Starting new request cycle ===")
	b.setState(AwaitingProposals)
	b.bus.Publish(Event{Kind: RoundStarted, Actor: ctx.Self(), Title: b.target, ConversationID: conversationID})

	expected := b.broadcastCFP(ctx, conversationID)
	proposals := b.collectProposals(ctx, log, conversationID, expected)
	if ctx.Stopping() {
		return
	}

	if len(proposals) == 0 {
		b.noProposalRetries++
		log.Warnf("No proposals received. Will try again later. (Retry %d/%d)", b.noProposalRetries, b.cfg.MaxNoProposalRetries)
		if b.noProposalRetries >= b.cfg.MaxNoProposalRetries {
			b.terminate(ctx, conversationID, "Max retries reached with no proposals. Terminating.")
			return
		}
		b.setState(Idle)
		return
	}
	b.noProposalRetries = 0

	b.setState(SelectingBest)
	best, ok := selectBest(log, proposals)
	if !ok {
		log.Warn("No valid proposals received.")
		b.setState(Idle)
		return
	}
	log.Infof("Best offer: %d from %s", best.Price, best.Seller)

	b.setState(AwaitingConfirmation)
	switch b.attemptPurchase(ctx, log, conversationID, best) {
	case purchaseConfirmed:
		b.complete(ctx, log, conversationID, best, false)
	case purchaseAssumed:
		b.complete(ctx, log, conversationID, best, true)
	case purchaseRefused:
		b.bus.Publish(Event{Kind: PurchaseRefused, Actor: ctx.Self(), Title: b.target, Seller: best.Seller, Price: best.Price, ConversationID: conversationID})
		b.setState(Idle)
	default:
		b.setState(Idle)
	}
}

// broadcastCFP calls every known seller and returns how many calls were
// routed. Unknown sellers are logged by the engine and skipped.
func (b *BuyerActor) broadcastCFP(ctx bollywood.Context, conversationID string) int {
	replyWith := utils.NewCFPToken()
	routed := 0
	for _, seller := range b.sellers {
		cfp := bollywood.Message{
			Performative:   bollywood.CFP,
			Receiver:       seller,
			Content:        b.target,
			ConversationID: conversationID,
			ReplyWith:      replyWith,
		}
		if err := ctx.Send(cfp); err == nil {
			routed++
		}
	}
	return routed
}

// collectProposals gathers replies for this conversation until the collect
// window closes. Once every called seller has answered it keeps listening
// for StragglerWait more, then stops early.
func (b *BuyerActor) collectProposals(ctx bollywood.Context, log *logrus.Entry, conversationID string, expected int) []bollywood.Message {
	log.Infof("Waiting for replies from %d sellers...", expected)

	var proposals []bollywood.Message
	replies := 0
	deadline := time.Now().Add(b.cfg.CollectWindow)
	straggling := false
	if expected == 0 {
		deadline, straggling = b.stragglerDeadline(deadline), true
	}

	for !ctx.Stopping() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		msg, ok := ctx.Poll(minDuration(b.cfg.CollectPoll, remaining))
		if !ok {
			continue
		}
		if msg.ConversationID != conversationID {
			log.Debugf("Discarding %s from %s: not part of this round", msg.Performative, msg.Sender)
			continue
		}

		switch msg.Performative {
		case bollywood.Propose:
			replies++
			proposals = append(proposals, msg)
			log.Infof("Received proposal from %s: %s", msg.Sender, msg.Content)
			price, _ := utils.ParsePrice(msg.Content)
			b.bus.Publish(Event{Kind: ProposalReceived, Actor: ctx.Self(), Title: b.target, Seller: msg.Sender, Price: price, ConversationID: conversationID, Detail: msg.Content})
		case bollywood.Refuse:
			replies++
			log.Infof("Received refusal from %s", msg.Sender)
		default:
			log.Debugf("Ignoring %s from %s while collecting", msg.Performative, msg.Sender)
			continue
		}

		if !straggling && replies >= expected {
			deadline, straggling = b.stragglerDeadline(deadline), true
		}
	}

	log.Infof("Received %d replies (%d proposals)", replies, len(proposals))
	return proposals
}

func (b *BuyerActor) stragglerDeadline(deadline time.Time) time.Time {
	if d := time.Now().Add(b.cfg.StragglerWait); d.Before(deadline) {
		return d
	}
	return deadline
}

// selectBest picks the cheapest proposal. Ties go to the earliest arrival;
// proposals without a positive integer price are skipped.
func selectBest(log *logrus.Entry, proposals []bollywood.Message) (Proposal, bool) {
	var best Proposal
	found := false
	for _, p := range proposals {
		price, ok := utils.ParsePrice(p.Content)
		if !ok {
			log.Warnf("Invalid price format from %s: %s", p.Sender, p.Content)
			continue
		}
		if !found || price < best.Price {
			best = Proposal{Seller: p.Sender, Price: price}
			found = true
		}
	}
	return best, found
}

// attemptPurchase accepts best and waits for the seller's verdict. A buyer
// sends at most one ACCEPT_PROPOSAL per round; when no verdict arrives within
// both confirmation windows the purchase is taken as done.
func (b *BuyerActor) attemptPurchase(ctx bollywood.Context, log *logrus.Entry, conversationID string, best Proposal) purchaseResult {
	replyWith := utils.NewOrderToken()
	accept := bollywood.Message{
		Performative:   bollywood.AcceptProposal,
		Receiver:       best.Seller,
		Content:        b.target,
		ConversationID: conversationID,
		ReplyWith:      replyWith,
	}
	if err := ctx.Send(accept); err != nil {
		log.WithError(err).Errorf("Could not place order with %s", best.Seller)
		return purchaseUndelivered
	}

	reply, ok := b.awaitVerdict(ctx, log, conversationID, replyWith, b.cfg.ConfirmWindow)
	if !ok && !ctx.Stopping() {
		log.Warn("Timeout reached, checking for late confirmation messages...")
		reply, ok = b.awaitVerdict(ctx, log, conversationID, replyWith, b.cfg.LateConfirmWindow)
		if ok && reply.Performative == bollywood.Inform {
			log.Infof("Received late confirmation from %s", best.Seller)
		}
	}
	if !ok {
		if ctx.Stopping() {
			return purchaseInterrupted
		}
		log.Warnf("No confirmation received from %s - assuming purchase succeeded to avoid double-buy", best.Seller)
		return purchaseAssumed
	}
	if reply.Performative == bollywood.Inform {
		return purchaseConfirmed
	}
	log.Warnf("Purchase failed: %s", reply.Content)
	return purchaseRefused
}

// awaitVerdict waits up to window for the reply correlated with replyWith.
// Anything else that arrives meanwhile is stale and discarded.
func (b *BuyerActor) awaitVerdict(ctx bollywood.Context, log *logrus.Entry, conversationID, replyWith string, window time.Duration) (bollywood.Message, bool) {
	deadline := time.Now().Add(window)
	for !ctx.Stopping() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		msg, ok := ctx.Poll(minDuration(b.cfg.ConfirmPoll, remaining))
		if !ok {
			continue
		}
		if msg.ConversationID == conversationID && msg.InReplyTo == replyWith {
			return msg, true
		}
		log.Debugf("Discarding %s from %s while awaiting confirmation", msg.Performative, msg.Sender)
	}
	return bollywood.Message{}, false
}

func (b *BuyerActor) complete(ctx bollywood.Context, log *logrus.Entry, conversationID string, best Proposal, assumed bool) {
	b.finish(Outcome{State: Done, Seller: best.Seller, Price: best.Price, Assumed: assumed})
	log.Info("*** PURCHASE SUCCESSFUL! ***")
	log.WithFields(logrus.Fields{
		"book":   b.target,
		"price":  best.Price,
		"seller": best.Seller,
	}).Info("Purchase details")

	detail := ""
	if assumed {
		detail = "unconfirmed"
	}
	b.bus.Publish(Event{
		Kind:           PurchaseCompleted,
		Actor:          ctx.Self(),
		Title:          b.target,
		Seller:         best.Seller,
		Price:          best.Price,
		ConversationID: conversationID,
		Detail:         detail,
	})
}

func (b *BuyerActor) terminate(ctx bollywood.Context, conversationID, reason string) {
	ctx.Logger().Warn(reason)
	b.finish(Outcome{State: Terminated, Reason: reason})
	b.bus.Publish(Event{
		Kind:           NegotiationTerminated,
		Actor:          ctx.Self(),
		Title:          b.target,
		ConversationID: conversationID,
		Detail:         reason,
	})
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// Buyer is the driver's handle on a buyer actor.
type Buyer struct {
	actor *BuyerActor
	proc  *bollywood.Process
}

// Name returns the buyer's registered name.
func (b *Buyer) Name() string { return b.proc.Name() }

// Target returns the title the buyer is after.
func (b *Buyer) Target() string { return b.actor.target }

// Start registers the buyer and begins negotiating.
func (b *Buyer) Start() error { return b.proc.Start() }

// Stop interrupts any negotiation and deregisters the buyer.
func (b *Buyer) Stop() { b.proc.Stop() }

// Alive reports whether the buyer goroutine is still running.
func (b *Buyer) Alive() bool { return b.proc.Alive() }

// IsComplete reports whether the buyer bought its title or gave up.
func (b *Buyer) IsComplete() bool { return b.actor.IsComplete() }

// State returns the buyer's negotiation state.
func (b *Buyer) State() BuyerState { return b.actor.State() }

// Outcome returns what the buyer achieved so far.
func (b *Buyer) Outcome() Outcome { return b.actor.Outcome() }
