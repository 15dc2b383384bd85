/**
 * @description
 * This file contains the HTTP handlers for the wallet-service's authenticated
 * API endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business logic
 * layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/cloudblinker/wallet-service/internal/app"
	"github.com/cloudblinker/wallet-service/internal/domain"
	"github.com/cloudblinker/wallet-service/internal/store"
	"github.com/cloudblinker/wallet-service/pkg/stripeclient"
)

// WalletHandlers holds the application service that handlers will use.
type WalletHandlers struct {
	service *app.Service
}

// NewWalletHandlers creates a new instance of WalletHandlers.
func NewWalletHandlers(service *app.Service) *WalletHandlers {
	return &WalletHandlers{service: service}
}

// CreateCheckoutSessionHandler handles top-up checkout session creation.
func (h *WalletHandlers) CreateCheckoutSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req domain.CreateCheckoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=checkout_session outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.CreateCheckoutSession(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=checkout_session outcome=failed user_id=%s err=%v", userID, err)
		switch {
		case errors.Is(err, app.ErrInvalidTopUpAmount):
			h.writeError(w, http.StatusBadRequest, "Top-up amount must be positive")
		case errors.Is(err, app.ErrRoleNotAllowed):
			h.writeError(w, http.StatusForbidden, "Only clients can top up a wallet")
		case errors.Is(err, store.ErrProfileNotFound):
			h.writeError(w, http.StatusBadRequest, "Profile not found")
		default:
			var apiErr *stripeclient.APIError
			if errors.As(err, &apiErr) {
				h.writeError(w, http.StatusInternalServerError, "Payment provider error")
				return
			}
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetWalletHandler returns the caller's wallet balances.
func (h *WalletHandlers) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=wallet outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load wallet")
		return
	}
	h.writeJSON(w, http.StatusOK, wallet)
}

// GetProfileHandler returns the caller's profile.
func (h *WalletHandlers) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			h.writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		log.Printf("level=error component=api endpoint=profile outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}

// ListTasksHandler returns the tasks for the caller's dashboard, scoped by role.
func (h *WalletHandlers) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			h.writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		log.Printf("level=error component=api endpoint=tasks outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tasks, err := h.service.ListTasksForUser(r.Context(), profile, limit, offset)
	if err != nil {
		log.Printf("level=error component=api endpoint=tasks outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load tasks")
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	h.writeJSON(w, http.StatusOK, tasks)
}

func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
