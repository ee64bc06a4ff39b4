// File: market/catalogue.go
package market

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// UpdateResult reports what AddOrUpdate did.
type UpdateResult int

const (
	Added UpdateResult = iota + 1
	PriceUpdated
	RejectedAlreadySold
)

func (r UpdateResult) String() string {
	switch r {
	case Added:
		return "Added"
	case PriceUpdated:
		return "PriceUpdated"
	case RejectedAlreadySold:
		return "RejectedAlreadySold"
	default:
		return "Unknown"
	}
}

// Status tells whether a listing can still be bought.
type Status int

const (
	Available Status = iota + 1
	Sold
)

func (s Status) String() string {
	switch s {
	case Available:
		return "Available"
	case Sold:
		return "Sold"
	default:
		return "Unknown"
	}
}

// MarshalText renders the status by name in JSON.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Listing is one row of a seller's catalogue view.
type Listing struct {
	Title  string `json:"title"`
	Price  int    `json:"price"`
	Status Status `json:"status"`
}

// ChangeNotifier is told after every catalogue mutation.
type ChangeNotifier interface {
	NotifyChanged()
}

// Catalogue holds a seller's available and sold listings. A title is in at
// most one of the two sets, and once sold it never leaves the sold set. All
// access paths (offer server, purchase server, editors) share one lock.
type Catalogue struct {
	mu        sync.RWMutex
	available map[string]int
	sold      map[string]int

	watchMu  sync.Mutex
	watchers []ChangeNotifier

	log *logrus.Entry
}

// NewCatalogue creates an empty catalogue logging through log.
func NewCatalogue(log *logrus.Entry) *Catalogue {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Catalogue{
		available: make(map[string]int),
		sold:      make(map[string]int),
		log:       log,
	}
}

// Watch registers n to be told about every later mutation.
func (c *Catalogue) Watch(n ChangeNotifier) {
	if n == nil {
		return
	}
	c.watchMu.Lock()
	c.watchers = append(c.watchers, n)
	c.watchMu.Unlock()
}

// NotifyChanged tells every watcher that the catalogue changed.
func (c *Catalogue) NotifyChanged() {
	c.watchMu.Lock()
	watchers := make([]ChangeNotifier, len(c.watchers))
	copy(watchers, c.watchers)
	c.watchMu.Unlock()

	for _, w := range watchers {
		w.NotifyChanged()
	}
}

// AddOrUpdate lists title at price, or reprices an available listing. Sold
// titles are immutable and are never re-listed.
func (c *Catalogue) AddOrUpdate(title string, price int) (UpdateResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, ErrEmptyTitle
	}
	if price <= 0 {
		return 0, fmt.Errorf("%s at %d: %w", title, price, ErrInvalidPrice)
	}

	c.mu.Lock()
	if _, sold := c.sold[title]; sold {
		c.mu.Unlock()
		c.log.Errorf("Cannot add '%s' - this book was already sold", title)
		return RejectedAlreadySold, nil
	}
	oldPrice, existed := c.available[title]
	c.available[title] = price
	c.mu.Unlock()

	result := Added
	if existed {
		result = PriceUpdated
		c.log.Warnf("Updated price for '%s' from %d to %d", title, oldPrice, price)
	} else {
		c.log.Infof("Added to catalogue: %s at price %d", title, price)
	}
	c.NotifyChanged()
	return result, nil
}

// Offer returns the asking price of an available title.
func (c *Catalogue) Offer(title string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	price, ok := c.available[title]
	return price, ok
}

// Sell atomically moves title from the available to the sold set and returns
// the price it sold for. When several callers race for one title exactly one
// of them gets ok == true.
func (c *Catalogue) Sell(title string) (int, bool) {
	c.mu.Lock()
	price, ok := c.available[title]
	if ok {
		delete(c.available, title)
		c.sold[title] = price
	}
	c.mu.Unlock()

	if ok {
		c.NotifyChanged()
	}
	return price, ok
}

// Remove withdraws an available listing. Sold titles stay sold.
func (c *Catalogue) Remove(title string) bool {
	c.mu.Lock()
	_, ok := c.available[title]
	delete(c.available, title)
	c.mu.Unlock()

	if ok {
		c.log.Infof("Removed from catalogue: %s", title)
		c.NotifyChanged()
	}
	return ok
}

// Price looks title up among available listings first, then sold ones.
func (c *Catalogue) Price(title string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if price, ok := c.available[title]; ok {
		return price, true
	}
	price, ok := c.sold[title]
	return price, ok
}

// IsSold reports whether title has been sold.
func (c *Catalogue) IsSold(title string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sold[title]
	return ok
}

// QueryAll returns every listing, available and sold, ordered by title.
func (c *Catalogue) QueryAll() []Listing {
	c.mu.RLock()
	out := make([]Listing, 0, len(c.available)+len(c.sold))
	for title, price := range c.available {
		out = append(out, Listing{Title: title, Price: price, Status: Available})
	}
	for title, price := range c.sold {
		out = append(out, Listing{Title: title, Price: price, Status: Sold})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// Len returns the number of available and sold listings.
func (c *Catalogue) Len() (available, sold int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.available), len(c.sold)
}
