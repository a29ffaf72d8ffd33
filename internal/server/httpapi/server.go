// Package httpapi exposes the distribution core over a thin JSON seam.
// It is deliberately framework-free: routing is a stdlib mux, identity is
// the verbatim X-User-ID header, and sentinel errors map onto status codes.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	ledger    service.Ledger
	processor *service.Processor
	issuer    *service.Issuer
	tracker   *service.Tracker
	cdn       *service.CDN
	log       *zap.Logger
}

// New constructs the HTTP server with injected services.
func New(ledger service.Ledger, processor *service.Processor, issuer *service.Issuer, tracker *service.Tracker, cdn *service.CDN, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{ledger: ledger, processor: processor, issuer: issuer, tracker: tracker, cdn: cdn, log: log}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /purchases", s.createPurchase)
	mux.HandleFunc("GET /purchases", s.listPurchases)
	mux.HandleFunc("GET /purchases/{id}", s.getPurchase)
	mux.HandleFunc("GET /entitlements", s.listEntitlements)
	mux.HandleFunc("GET /entitlements/{gameId}", s.getEntitlement)
	mux.HandleFunc("POST /downloads/{gameId}/token", s.issueToken)
	mux.HandleFunc("GET /downloads/{gameId}/status", s.downloadStatus)
	mux.HandleFunc("GET /downloads/{gameId}/blocks", s.listBlocks)
	mux.HandleFunc("POST /downloads/{gameId}/start", s.startDownload)
	mux.HandleFunc("POST /downloads/{gameId}/pause", s.pauseDownload)
	mux.HandleFunc("POST /downloads/blocks/{blockId}/verify", s.verifyBlock)
	mux.HandleFunc("GET /downloads/cdn/servers", s.listCDNServers)
	return mux
}

// --- Purchases ---

type createPurchaseRequest struct {
	GameID        string `json:"gameId"`
	PaymentMethod string `json:"paymentMethod"`
	Country       string `json:"country"`
	Currency      string `json:"currency"`
}

func (s *Server) createPurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req createPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errs.ErrBadRequest)
		return
	}
	p, err := s.ledger.RecordPurchase(r.Context(), userID, req.GameID, service.PurchaseRequest{
		PaymentMethod: req.PaymentMethod,
		Country:       req.Country,
		Currency:      req.Currency,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.processor.Submit(*p)
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) listPurchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	out, err := s.ledger.ListPurchases(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, err := uuid.FromString(r.PathValue("id"))
	if err != nil {
		s.writeError(w, errs.ErrNotFound)
		return
	}
	p, err := s.ledger.GetPurchase(r.Context(), userID, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// --- Entitlements ---

func (s *Server) listEntitlements(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	out, err := s.ledger.ListEntitlements(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getEntitlement(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	e, err := s.ledger.GetEntitlement(r.Context(), userID, r.PathValue("gameId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

// --- Downloads ---

type issueTokenRequest struct {
	Country         string `json:"country"`
	PreferredRegion string `json:"preferredRegion"`
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req issueTokenRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errs.ErrBadRequest)
			return
		}
	}
	tok, err := s.issuer.Issue(r.Context(), r.PathValue("gameId"), userID, req.PreferredRegion, req.Country)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tok)
}

func (s *Server) downloadStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	st, err := s.tracker.Status(r.Context(), userID, r.PathValue("gameId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) listBlocks(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	blocks, err := s.tracker.Blocks(r.Context(), r.PathValue("gameId"), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, blocks)
}

func (s *Server) startDownload(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	st, err := s.tracker.Start(r.Context(), userID, r.PathValue("gameId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) pauseDownload(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	st, err := s.tracker.Pause(r.Context(), userID, r.PathValue("gameId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

type verifyBlockRequest struct {
	Checksum string `json:"checksum"`
}

func (s *Server) verifyBlock(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req verifyBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errs.ErrBadRequest)
		return
	}
	res, err := s.tracker.VerifyBlock(r.Context(), r.PathValue("blockId"), userID, req.Checksum)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) listCDNServers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cdn.ListServers(r.URL.Query().Get("region")))
}

// --- Helpers ---

// userID reads the authenticated user from the X-User-ID header. Identity
// is established upstream; this core trusts the header verbatim.
func (s *Server) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		s.writeError(w, errs.ErrBadRequest)
		return "", false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, errs.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, errs.ErrBadRequest), errors.Is(err, errs.ErrUnavailable):
		code = http.StatusBadRequest
	default:
		s.log.Error("internal error", zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
