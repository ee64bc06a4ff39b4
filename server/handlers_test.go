// File: server/handlers_test.go
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/lguibr/bazaar/bollywood"
	"github.com/lguibr/bazaar/market"
	"github.com/lguibr/bazaar/utils"
)

// --- Test Setup ---
func setupTestServer(t *testing.T) (*Server, *market.Simulation) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := utils.FastConfig()
	engine := bollywood.NewEngine(bollywood.NewRegistry(), logger)
	sim := market.NewSimulation(engine, cfg, market.NewBus(logger))
	seller, err := sim.CreateSeller("Seller1")
	require.NoError(t, err)
	_, err = seller.AddOrUpdate("Life-of-Pi", 20)
	require.NoError(t, err)
	_, err = sim.CreateSeller("Seller2")
	require.NoError(t, err)

	t.Cleanup(func() {
		sim.StopAgents()
		_ = engine.Shutdown(cfg.ShutdownTimeout)
	})
	return New(sim, logger), sim
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)
	return rr
}

func dial(t *testing.T, srv *Server, query string) *websocket.Conn {
	t.Helper()
	s := httptest.NewServer(srv.Routes())
	t.Cleanup(s.Close)
	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/subscribe" + query
	ws, err := websocket.Dial(wsURL, "", s.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// --- Tests ---

func TestHandleSellers(t *testing.T) {
	srv, _ := setupTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/sellers", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `["Seller1","Seller2"]`, rr.Body.String())

	rr = doRequest(t, srv, http.MethodDelete, "/sellers", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleCatalogueQuery(t *testing.T) {
	srv, _ := setupTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/catalogue?seller=Seller1", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"seller":"Seller1","listings":[{"title":"Life-of-Pi","price":20,"status":"Available"}]}`, rr.Body.String())

	rr = doRequest(t, srv, http.MethodGet, "/catalogue?seller=Nobody", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleCatalogueEdit(t *testing.T) {
	srv, sim := setupTestServer(t)

	rr := doRequest(t, srv, http.MethodPost, "/catalogue", `{"seller":"Seller2","title":"Dune","price":9}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"result":"Added"}`, rr.Body.String())

	rr = doRequest(t, srv, http.MethodPost, "/catalogue", `{"seller":"Seller2","title":"Dune","price":7}`)
	assert.JSONEq(t, `{"result":"PriceUpdated"}`, rr.Body.String())

	seller, err := sim.Seller("Seller2")
	require.NoError(t, err)
	price, ok := seller.Catalogue().Offer("Dune")
	assert.True(t, ok)
	assert.Equal(t, 7, price)

	_, _ = seller.Catalogue().Sell("Dune")
	rr = doRequest(t, srv, http.MethodPost, "/catalogue", `{"seller":"Seller2","title":"Dune","price":30}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"result":"RejectedAlreadySold"}`, rr.Body.String())
}

func TestHandleCatalogueEditErrors(t *testing.T) {
	srv, _ := setupTestServer(t)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{"seller":`, http.StatusBadRequest},
		{"unknown seller", `{"seller":"Ghost","title":"X","price":1}`, http.StatusNotFound},
		{"empty title", `{"seller":"Seller1","title":"  ","price":1}`, http.StatusBadRequest},
		{"zero price", `{"seller":"Seller1","title":"X","price":0}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, srv, http.MethodPost, "/catalogue", tc.body)
			assert.Equal(t, tc.code, rr.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandleSubscribe_StreamsEvents(t *testing.T) {
	srv, sim := setupTestServer(t)
	ws := dial(t, srv, "?topics=catalogue")

	require.Eventually(t, func() bool { return sim.Bus().Subscribers() == 1 },
		time.Second, 10*time.Millisecond, "subscription registered")
	// Not matched by the topics filter.
	sim.Bus().Publish(market.Event{Kind: market.RoundStarted, Actor: "Buyer1"})

	rr := doRequest(t, srv, http.MethodPost, "/catalogue", `{"seller":"Seller1","title":"Dune","price":9}`)
	require.Equal(t, http.StatusOK, rr.Code)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev market.Event
	require.NoError(t, websocket.JSON.Receive(ws, &ev))
	assert.Equal(t, market.CatalogueChanged, ev.Kind)
	assert.Equal(t, "Seller1", ev.Actor)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestHandleSubscribe_CleansUpOnClose(t *testing.T) {
	srv, sim := setupTestServer(t)
	ws := dial(t, srv, "")

	require.Eventually(t, func() bool { return srv.Connections() == 1 },
		time.Second, 10*time.Millisecond)
	require.NoError(t, ws.Close())

	assert.Eventually(t, func() bool {
		return srv.Connections() == 0 && sim.Bus().Subscribers() == 0
	}, 2*time.Second, 10*time.Millisecond, "subscription torn down after client close")
}

func TestHandleSubscribe_BadPattern(t *testing.T) {
	srv, sim := setupTestServer(t)
	ws := dial(t, srv, "?topics=%28")

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var body map[string]string
	require.NoError(t, websocket.JSON.Receive(ws, &body))
	assert.NotEmpty(t, body["error"])
	assert.Zero(t, sim.Bus().Subscribers())
}
