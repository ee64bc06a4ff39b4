package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lguibr/bazaar/utils"
)

// slowCollection keeps buyers collecting proposals for a minute.
func slowCollection(cfg *utils.Config) {
	cfg.CollectWindow = time.Minute
	cfg.StragglerWait = time.Minute
}

func TestSimulation_SellerLookup(t *testing.T) {
	sim, _ := newTestSimulation(t)
	_, err := sim.CreateSeller("Seller1")
	require.NoError(t, err)
	_, err = sim.CreateSeller("Seller2")
	require.NoError(t, err)

	assert.Equal(t, []string{"Seller1", "Seller2"}, sim.SellerNames())
	seller, err := sim.Seller("Seller2")
	require.NoError(t, err)
	assert.Equal(t, "Seller2", seller.Name())
	_, err = sim.Seller("Nobody")
	assert.ErrorIs(t, err, ErrUnknownSeller)

	assert.False(t, sim.Engine().Registry().IsRegistered("Seller1"), "sellers register when started")
}

func TestSimulation_BuyerSeesSellersKnownAtCreation(t *testing.T) {
	sim, _ := newTestSimulation(t)
	_, err := sim.CreateSeller("Seller1")
	require.NoError(t, err)
	buyer, err := sim.CreateBuyer("Buyer1", "Dune", time.Second)
	require.NoError(t, err)
	_, err = sim.CreateSeller("Seller2")
	require.NoError(t, err)

	assert.Equal(t, []string{"Seller1"}, buyer.actor.sellers)
}

func TestSimulation_RepeatedCycles(t *testing.T) {
	sim, _ := newTestSimulation(t)
	seller1, err := sim.CreateSeller("Seller1")
	require.NoError(t, err)
	seller2, err := sim.CreateSeller("Seller2")
	require.NoError(t, err)
	_, _ = seller1.AddOrUpdate("Life-of-Pi", 20)
	_, _ = seller1.AddOrUpdate("The-Kite-Runner", 25)
	_, _ = seller2.AddOrUpdate("Life-of-Pi", 15)

	ctx := context.Background()
	buyer1, err := sim.CreateBuyer("Buyer1", "The-Kite-Runner", sim.cfg.RequestInterval)
	require.NoError(t, err)
	buyer2, err := sim.CreateBuyer("Buyer2", "Life-of-Pi", sim.cfg.RequestInterval)
	require.NoError(t, err)
	require.NoError(t, sim.StartAgents(ctx))

	assert.True(t, sim.WaitForCompletion(ctx, sim.cfg.CompletionTimeout))
	assert.Equal(t, Outcome{State: Done, Seller: "Seller1", Price: 25}, buyer1.Outcome())
	assert.Equal(t, Outcome{State: Done, Seller: "Seller2", Price: 15}, buyer2.Outcome())
	sim.StopBuyers()
	sim.ClearBuyers()
	assert.Empty(t, sim.Buyers())
	assert.False(t, sim.Engine().Registry().IsRegistered("Buyer1"))

	// Second cycle: the remaining Life-of-Pi copy is Seller1's.
	again, err := sim.CreateBuyer("Buyer1", "Life-of-Pi", sim.cfg.RequestInterval)
	require.NoError(t, err)
	require.NoError(t, sim.StartBuyers())
	assert.True(t, sim.WaitForCompletion(ctx, sim.cfg.CompletionTimeout))
	assert.Equal(t, Outcome{State: Done, Seller: "Seller1", Price: 20}, again.Outcome())

	sim.StopAgents()
	assert.Equal(t, 0, sim.Engine().Registry().Count())
	assert.False(t, seller1.Alive())
	assert.False(t, seller2.Alive())
}

func TestSimulation_WaitForCompletionTimesOut(t *testing.T) {
	sim, _ := newTestSimulation(t, slowCollection)
	seller, err := sim.CreateSeller("Seller1")
	require.NoError(t, err)
	_, _ = seller.AddOrUpdate("Dune", 9)
	buyer, err := sim.CreateBuyer("Buyer1", "Life-of-Pi", sim.cfg.RequestInterval)
	require.NoError(t, err)
	require.NoError(t, sim.StartAgents(context.Background()))

	start := time.Now()
	assert.False(t, sim.WaitForCompletion(context.Background(), 100*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.True(t, buyer.Alive())

	stopped := make(chan struct{})
	go func() {
		sim.StopAgents()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("StopAgents did not interrupt a collecting buyer")
	}
	assert.False(t, buyer.IsComplete())
}

func TestSimulation_WaitForCompletionHonoursContext(t *testing.T) {
	sim, _ := newTestSimulation(t, slowCollection)
	_, err := sim.CreateSeller("Seller1")
	require.NoError(t, err)
	_, err = sim.CreateBuyer("Buyer1", "Dune", sim.cfg.RequestInterval)
	require.NoError(t, err)
	require.NoError(t, sim.StartAgents(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.False(t, sim.WaitForCompletion(ctx, time.Minute))
}

func TestSimulation_StoppedBuyerCountsAsSettled(t *testing.T) {
	sim, _ := newTestSimulation(t, slowCollection)
	_, err := sim.CreateSeller("Seller1")
	require.NoError(t, err)
	buyer, err := sim.CreateBuyer("Buyer1", "Dune", sim.cfg.RequestInterval)
	require.NoError(t, err)
	require.NoError(t, sim.StartAgents(context.Background()))

	buyer.Stop()
	assert.True(t, sim.WaitForCompletion(context.Background(), time.Second))
	assert.False(t, buyer.IsComplete())
}

func TestSimulation_StartAgentsCancelled(t *testing.T) {
	sim, _ := newTestSimulation(t, func(cfg *utils.Config) {
		cfg.SellerStartupDelay = time.Minute
	})
	_, err := sim.CreateSeller("Seller1")
	require.NoError(t, err)
	buyer, err := sim.CreateBuyer("Buyer1", "Dune", sim.cfg.RequestInterval)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sim.StartAgents(ctx), context.Canceled)
	assert.False(t, buyer.Alive())
}
