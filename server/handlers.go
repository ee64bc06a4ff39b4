// File: server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/lguibr/bazaar/market"
)

// CatalogueResponse is the body of GET /catalogue.
type CatalogueResponse struct {
	Seller   string           `json:"seller"`
	Listings []market.Listing `json:"listings"`
}

// EditRequest is the body of POST /catalogue.
type EditRequest struct {
	Seller string `json:"seller"`
	Title  string `json:"title"`
	Price  int    `json:"price"`
}

// EditResponse is the reply to POST /catalogue.
type EditResponse struct {
	Result string `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Warn("Error writing response")
	}
}

func (s *Server) recoverTo(w http.ResponseWriter) {
	if rec := recover(); rec != nil {
		s.log.Errorf("panic in handler: %v\n%s", rec, debug.Stack())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// HandleSellers lists the seller names.
func (s *Server) HandleSellers() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		defer s.recoverTo(w)
		if r.Method != http.MethodGet {
			s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{"method not allowed"})
			return
		}
		s.writeJSON(w, http.StatusOK, s.sim.SellerNames())
	}
}

// HandleCatalogue queries (GET ?seller=) or edits (POST) a seller's
// catalogue.
func (s *Server) HandleCatalogue() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		defer s.recoverTo(w)
		switch r.Method {
		case http.MethodGet:
			s.queryCatalogue(w, r)
		case http.MethodPost:
			s.editCatalogue(w, r)
		default:
			s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{"method not allowed"})
		}
	}
}

func (s *Server) queryCatalogue(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("seller")
	seller, err := s.sim.Seller(name)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, CatalogueResponse{Seller: name, Listings: seller.QueryAll()})
}

func (s *Server) editCatalogue(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{"invalid JSON: " + err.Error()})
		return
	}
	seller, err := s.sim.Seller(req.Seller)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{err.Error()})
		return
	}

	res, err := seller.AddOrUpdate(req.Title, req.Price)
	switch {
	case errors.Is(err, market.ErrEmptyTitle), errors.Is(err, market.ErrInvalidPrice):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		return
	case err != nil:
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
		return
	}

	status := http.StatusOK
	if res == market.RejectedAlreadySold {
		status = http.StatusConflict
	}
	s.log.WithFields(logrus.Fields{"seller": req.Seller, "title": req.Title, "result": res.String()}).Info("Catalogue edited")
	s.writeJSON(w, status, EditResponse{Result: res.String()})
}
