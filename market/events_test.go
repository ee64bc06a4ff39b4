package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishToMatchingSubscribers(t *testing.T) {
	bus := NewBus(quietLogger())
	all, err := bus.Subscribe("", 8)
	require.NoError(t, err)
	purchases, err := bus.Subscribe("^purchase-", 8)
	require.NoError(t, err)
	assert.Equal(t, 2, bus.Subscribers())

	bus.Publish(Event{Kind: RoundStarted, Actor: "Buyer1"})
	bus.Publish(Event{Kind: PurchaseCompleted, Actor: "Buyer1", Seller: "Seller2", Price: 15})

	first := <-all.C
	assert.Equal(t, RoundStarted, first.Kind)
	assert.False(t, first.Timestamp.IsZero(), "publish stamps events")
	assert.Equal(t, PurchaseCompleted, (<-all.C).Kind)

	ev := <-purchases.C
	assert.Equal(t, PurchaseCompleted, ev.Kind)
	assert.Equal(t, 15, ev.Price)
	select {
	case extra := <-purchases.C:
		t.Fatalf("unexpected event %v", extra)
	default:
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus(quietLogger())
	sub, err := bus.Subscribe("", 1)
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel()
	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 0, bus.Subscribers())
	bus.Publish(Event{Kind: CatalogueChanged})
}

func TestBus_FullSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(quietLogger())
	sub, err := bus.Subscribe("", 1)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(Event{Kind: CatalogueChanged})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, sub.C, 1)
}

func TestBus_InvalidPatternAndNilBus(t *testing.T) {
	bus := NewBus(quietLogger())
	_, err := bus.Subscribe("(", 1)
	assert.Error(t, err)

	var none *Bus
	assert.NotPanics(t, func() { none.Publish(Event{Kind: RoundStarted}) })
}

func TestSellerCatalogueChangesArePublished(t *testing.T) {
	sim, bus := newTestSimulation(t)
	sub, err := bus.Subscribe("^catalogue-changed$", 8)
	require.NoError(t, err)
	defer sub.Cancel()

	seller, err := sim.CreateSeller("Seller1")
	require.NoError(t, err)
	_, err = seller.AddOrUpdate("Dune", 9)
	require.NoError(t, err)

	select {
	case ev := <-sub.C:
		assert.Equal(t, CatalogueChanged, ev.Kind)
		assert.Equal(t, "Seller1", ev.Actor)
	case <-time.After(time.Second):
		t.Fatal("no catalogue event")
	}
}
