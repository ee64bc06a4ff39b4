package utils

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	conversationPrefix = "book-trade-"
	cfpPrefix          = "cfp-"
	orderPrefix        = "order-"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewConversationID returns a fresh, time-ordered conversation id.
func NewConversationID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return conversationPrefix + ulid.MustNew(ulid.Now(), entropy).String()
}

// NewCFPToken returns a reply-with token for a call for proposals.
func NewCFPToken() string { return cfpPrefix + uuid.NewString() }

// NewOrderToken returns a reply-with token for an accept-proposal.
func NewOrderToken() string { return orderPrefix + uuid.NewString() }

// ParsePrice reads a positive integer price. Anything else is rejected.
func ParsePrice(content string) (int, bool) {
	price, err := strconv.Atoi(strings.TrimSpace(content))
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

// FormatPrice renders a price as message content.
func FormatPrice(price int) string { return strconv.Itoa(price) }
