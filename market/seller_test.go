package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lguibr/bazaar/bollywood"
)

func startSeller(t *testing.T, sim *Simulation, name string, listings map[string]int) *Seller {
	t.Helper()
	seller, err := sim.CreateSeller(name)
	require.NoError(t, err)
	for title, price := range listings {
		_, err := seller.AddOrUpdate(title, price)
		require.NoError(t, err)
	}
	require.NoError(t, seller.Start())
	return seller
}

func TestSeller_ProposesAvailableTitle(t *testing.T) {
	sim, _ := newTestSimulation(t)
	startSeller(t, sim, "Seller1", map[string]int{"Life-of-Pi": 20})
	buyer := newRecorder()
	spawn(t, sim, "Buyer1", buyer)

	require.NoError(t, sim.Engine().Send(bollywood.Message{
		Performative:   bollywood.CFP,
		Sender:         "Buyer1",
		Receiver:       "Seller1",
		Content:        "Life-of-Pi",
		ConversationID: "book-trade-1",
		ReplyWith:      "cfp-1",
	}))

	reply := buyer.Expect(t)
	assert.Equal(t, bollywood.Propose, reply.Performative)
	assert.Equal(t, "20", reply.Content)
	assert.Equal(t, "Seller1", reply.Sender)
	assert.Equal(t, "book-trade-1", reply.ConversationID)
	assert.Equal(t, "cfp-1", reply.InReplyTo)
}

func TestSeller_RefusesUnknownTitle(t *testing.T) {
	sim, _ := newTestSimulation(t)
	startSeller(t, sim, "Seller1", map[string]int{"Life-of-Pi": 20})
	buyer := newRecorder()
	spawn(t, sim, "Buyer1", buyer)

	require.NoError(t, sim.Engine().Send(bollywood.Message{
		Performative: bollywood.CFP, Sender: "Buyer1", Receiver: "Seller1",
		Content: "Dune", ConversationID: "c", ReplyWith: "r",
	}))

	reply := buyer.Expect(t)
	assert.Equal(t, bollywood.Refuse, reply.Performative)
	assert.Equal(t, ReasonNotAvailable, reply.Content)
}

func TestSeller_ConcurrentAcceptsOneWinner(t *testing.T) {
	sim, _ := newTestSimulation(t)
	seller := startSeller(t, sim, "Seller1", map[string]int{"Life-of-Pi": 15})
	first, second := newRecorder(), newRecorder()
	spawn(t, sim, "Buyer1", first)
	spawn(t, sim, "Buyer2", second)

	for _, name := range []string{"Buyer1", "Buyer2"} {
		require.NoError(t, sim.Engine().Send(bollywood.Message{
			Performative:   bollywood.AcceptProposal,
			Sender:         name,
			Receiver:       "Seller1",
			Content:        "Life-of-Pi",
			ConversationID: "conv-" + name,
			ReplyWith:      "order-" + name,
		}))
	}

	replies := []bollywood.Message{first.Expect(t), second.Expect(t)}
	informs, refusals := 0, 0
	for _, r := range replies {
		switch r.Performative {
		case bollywood.Inform:
			informs++
			assert.Equal(t, PurchaseSuccessful, r.Content)
		case bollywood.Refuse:
			refusals++
			assert.Equal(t, ReasonNoLongerAvailable, r.Content)
		}
		assert.Equal(t, "order-"+r.Receiver, r.InReplyTo)
	}
	assert.Equal(t, 1, informs)
	assert.Equal(t, 1, refusals)
	assert.True(t, seller.Catalogue().IsSold("Life-of-Pi"))
}

func TestSeller_ServersDoNotStealEachOthersMessages(t *testing.T) {
	sim, _ := newTestSimulation(t)
	startSeller(t, sim, "Seller1", map[string]int{"Life-of-Pi": 15, "Dune": 9})
	buyer := newRecorder()
	spawn(t, sim, "Buyer1", buyer)

	send := func(p bollywood.Performative, title, token string) {
		require.NoError(t, sim.Engine().Send(bollywood.Message{
			Performative: p, Sender: "Buyer1", Receiver: "Seller1",
			Content: title, ConversationID: "c", ReplyWith: token,
		}))
	}
	send(bollywood.AcceptProposal, "Dune", "order-1")
	send(bollywood.CFP, "Life-of-Pi", "cfp-1")
	send(bollywood.Inform, "noise", "noise-1")

	byToken := map[string]bollywood.Message{}
	for i := 0; i < 2; i++ {
		reply := buyer.Expect(t)
		byToken[reply.InReplyTo] = reply
	}
	send(bollywood.CFP, "Dune", "cfp-2")
	reply := buyer.Expect(t)
	byToken[reply.InReplyTo] = reply

	assert.Equal(t, bollywood.Inform, byToken["order-1"].Performative)
	assert.Equal(t, bollywood.Propose, byToken["cfp-1"].Performative)
	assert.Equal(t, "15", byToken["cfp-1"].Content)
	assert.Equal(t, bollywood.Refuse, byToken["cfp-2"].Performative, "Dune was sold by the order")
}

func TestSeller_StopIsPrompt(t *testing.T) {
	sim, _ := newTestSimulation(t)
	seller := startSeller(t, sim, "Seller1", nil)
	assert.True(t, seller.Alive())
	assert.True(t, sim.Engine().Registry().IsRegistered("Seller1"))

	done := make(chan struct{})
	go func() {
		seller.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("seller did not stop")
	}
	assert.False(t, seller.Alive())
	assert.False(t, sim.Engine().Registry().IsRegistered("Seller1"))
}
