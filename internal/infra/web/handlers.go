package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"webshop-payments/internal/domain"
	"webshop-payments/internal/usecase"
)

const handlerTimeout = 35 * time.Second // outlasts 3 remote attempts

func paymentID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "paymentID"), 10, 64)
	return id, err == nil && id > 0
}

type startRequest struct {
	Submethod  string `json:"submethod"`
	Locale     string `json:"locale,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
}

// handleStart is called server-side by the shop frontend to obtain the
// redirect URL for a freshly created payment record.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	id, ok := paymentID(r)
	if !ok {
		http.Error(w, "invalid payment id", http.StatusBadRequest)
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	redirect, err := s.payUC.Initiate(ctx, id, req.Submethod, usecase.InitiateOptions{
		Locale:     req.Locale,
		RemoteAddr: req.RemoteAddr,
	})
	if err != nil {
		s.log.Error().Int64("payment_id", id).Err(err).Msg("initiation failed")
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "payment not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrDuplicateInitiation):
			http.Error(w, "payment already initiated", http.StatusConflict)
		case errors.Is(err, domain.ErrConfiguration):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			// Never leak a redirect URL on failure.
			http.Error(w, "payment could not be started", http.StatusBadGateway)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(struct {
		RedirectURL string `json:"redirect_url"`
	}{RedirectURL: redirect})
}

// handleReturn serves the buyer coming back from the payment page. The key
// fragment in the URL must match before anything is reconciled.
func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	id, ok := paymentID(r)
	if !ok {
		http.Error(w, "invalid payment id", http.StatusBadRequest)
		return
	}
	if !VerifyReturnKey(s.secret, id, chi.URLParam(r, "key")) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := s.payUC.Reconcile(ctx, id, r.URL.Query()); err != nil {
		s.log.Error().Int64("payment_id", id).Err(err).Msg("return reconciliation failed")
		s.renderHTML(w, http.StatusBadGateway, false, "We could not confirm your payment yet. If you did pay, it will be processed shortly.")
		return
	}
	s.renderHTML(w, http.StatusOK, true, "Thank you. Your payment has been received.")
}

// handleAbort serves the buyer cancelling at the payment page. No key
// fragment here: cancelling must stay cheap for legitimate users.
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	id, ok := paymentID(r)
	if !ok {
		http.Error(w, "invalid payment id", http.StatusBadRequest)
		return
	}

	if err := s.payUC.Reconcile(ctx, id, r.URL.Query()); err != nil {
		s.log.Error().Int64("payment_id", id).Err(err).Msg("abort reconciliation failed")
		s.renderHTML(w, http.StatusBadGateway, false, "The cancellation could not be recorded.")
		return
	}
	s.renderHTML(w, http.StatusOK, false, "The payment was cancelled.")
}

// handleReport is the provider's server-to-server push; it triggers
// reconciliation independent of any browser activity.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	id, ok := paymentID(r)
	if !ok {
		http.Error(w, "invalid payment id", http.StatusBadRequest)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := s.payUC.Reconcile(ctx, id, r.Form); err != nil {
		s.log.Error().Int64("payment_id", id).Err(err).Msg("report reconciliation failed")
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "unknown payment", http.StatusNotFound)
			return
		}
		http.Error(w, "reconciliation failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func contextWithTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), handlerTimeout)
}
