// File: market/seller.go
package market

import (
	"time"

	"github.com/lguibr/bazaar/bollywood"
	"github.com/lguibr/bazaar/utils"
)

// Reply contents used by sellers.
const (
	ReasonNotAvailable      = "not-available"
	ReasonNoLongerAvailable = "no-longer-available"
	PurchaseSuccessful      = "purchase-successful"
)

// SellerActor answers calls for proposals from its catalogue and serves
// purchase orders. Both servers run on their own sub-goroutine and each only
// ever receives the performative it handles.
type SellerActor struct {
	catalogue    *Catalogue
	pollInterval time.Duration
}

// NewSellerActor creates a seller serving catalogue.
func NewSellerActor(catalogue *Catalogue, cfg utils.Config) *SellerActor {
	return &SellerActor{
		catalogue:    catalogue,
		pollInterval: cfg.SellerPollInterval,
	}
}

// Catalogue returns the listings the seller serves.
func (s *SellerActor) Catalogue() *Catalogue { return s.catalogue }

func (s *SellerActor) OnStart(ctx bollywood.Context) {
	ctx.Logger().Info("Seller agent is ready.")
	ctx.Go(s.serveOffers)
	ctx.Go(s.servePurchases)
}

func (s *SellerActor) OnStop(ctx bollywood.Context) {
	ctx.Logger().Info("Seller agent terminating.")
}

// serveOffers answers every CFP with the current price or a refusal.
func (s *SellerActor) serveOffers(ctx bollywood.Context) {
	log := ctx.Logger()
	log.Debug("OfferRequestsServer started")
	for !ctx.Stopping() {
		msg, ok := ctx.ReceiveMatching(bollywood.CFP, s.pollInterval)
		if !ok {
			continue
		}
		_ = ctx.Send(s.offerReply(ctx, msg))
	}
	log.Debug("OfferRequestsServer stopped")
}

func (s *SellerActor) offerReply(ctx bollywood.Context, cfp bollywood.Message) bollywood.Message {
	title := cfp.Content
	reply := cfp.CreateReply()
	if price, ok := s.catalogue.Offer(title); ok {
		reply.Performative = bollywood.Propose
		reply.Content = utils.FormatPrice(price)
		ctx.Logger().Infof("Book '%s' available. Proposing price: %d", title, price)
		return reply
	}
	reply.Performative = bollywood.Refuse
	reply.Content = ReasonNotAvailable
	ctx.Logger().Infof("Book '%s' not available. Refusing.", title)
	return reply
}

// servePurchases resolves ACCEPT_PROPOSAL messages. The catalogue's atomic
// Sell decides races: exactly one buyer of a title is informed.
func (s *SellerActor) servePurchases(ctx bollywood.Context) {
	log := ctx.Logger()
	log.Debug("PurchaseOrdersServer started")
	for !ctx.Stopping() {
		msg, ok := ctx.ReceiveMatching(bollywood.AcceptProposal, s.pollInterval)
		if !ok {
			continue
		}
		_ = ctx.Send(s.purchaseReply(ctx, msg))
	}
	log.Debug("PurchaseOrdersServer stopped")
}

func (s *SellerActor) purchaseReply(ctx bollywood.Context, order bollywood.Message) bollywood.Message {
	title := order.Content
	reply := order.CreateReply()
	if price, ok := s.catalogue.Sell(title); ok {
		reply.Performative = bollywood.Inform
		reply.Content = PurchaseSuccessful
		ctx.Logger().Infof("Purchase order for '%s' served. Price: %d", title, price)
		return reply
	}
	reply.Performative = bollywood.Refuse
	reply.Content = ReasonNoLongerAvailable
	ctx.Logger().Infof("Book '%s' no longer available (already sold).", title)
	return reply
}

// catalogueEvents publishes a CatalogueChanged event for a seller.
type catalogueEvents struct {
	seller string
	bus    *Bus
}

func (n catalogueEvents) NotifyChanged() {
	n.bus.Publish(Event{Kind: CatalogueChanged, Actor: n.seller})
}

// Seller is the driver's handle on a seller actor.
type Seller struct {
	actor *SellerActor
	proc  *bollywood.Process
}

// Name returns the seller's registered name.
func (s *Seller) Name() string { return s.proc.Name() }

// Catalogue returns the seller's listings.
func (s *Seller) Catalogue() *Catalogue { return s.actor.catalogue }

// AddOrUpdate lists or reprices a title.
func (s *Seller) AddOrUpdate(title string, price int) (UpdateResult, error) {
	return s.actor.catalogue.AddOrUpdate(title, price)
}

// QueryAll returns every listing ordered by title.
func (s *Seller) QueryAll() []Listing { return s.actor.catalogue.QueryAll() }

// Watch registers n for catalogue change notifications.
func (s *Seller) Watch(n ChangeNotifier) { s.actor.catalogue.Watch(n) }

// Start registers the seller and starts both servers.
func (s *Seller) Start() error { return s.proc.Start() }

// Stop deregisters the seller and waits for both servers to exit.
func (s *Seller) Stop() { s.proc.Stop() }

// Alive reports whether the seller is running.
func (s *Seller) Alive() bool { return s.proc.Alive() }
