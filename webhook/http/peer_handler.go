// Package http serves the API other blogs call: the public post list, subscriptions and webhooks.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dfryer1193/gistblog/api"
	"github.com/dfryer1193/gistblog/blog/application"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

type PeerHandler struct {
	store *application.BlogStore
	subs  *application.SubscriptionService
}

func NewPeerHandler(store *application.BlogStore, subs *application.SubscriptionService) *PeerHandler {
	return &PeerHandler{
		store: store,
		subs:  subs,
	}
}

func (h *PeerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/posts", h.ListPosts)
	r.Head("/api/posts", h.ProbePosts)
	r.Post("/api/subscribe", h.HandleSubscribe)
	r.Post("/api/webhook", h.HandleWebhook)
}

// ListPosts returns the published posts in the native JSON shape.
func (h *PeerHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.PublishedPosts(r.Context()))
}

// ProbePosts answers liveness probes from peers verifying this blog.
func (h *PeerHandler) ProbePosts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

// HandleSubscribe registers the calling blog, identified by its Origin header, as a subscriber.
func (h *PeerHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req api.SubscribeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err)
		return
	}

	origin := r.Header.Get(api.HeaderOrigin)
	if err := h.subs.HandleSubscribe(r.Context(), origin, req); err != nil {
		log.Warn().Err(err).Str("origin", origin).Msg("Rejected subscription")
		writeFailure(w, api.StatusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}

// HandleWebhook accepts a post pushed by a followed blog.
func (h *PeerHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var envelope api.WebhookEnvelope
	if err := decodeBody(w, r, &envelope); err != nil {
		writeFailure(w, http.StatusBadRequest, err)
		return
	}

	origin := r.Header.Get(api.HeaderOrigin)
	secret := r.Header.Get(api.HeaderWebhookSecret)
	if _, err := h.subs.HandleWebhook(r.Context(), origin, secret, envelope); err != nil {
		log.Warn().Err(err).Str("origin", origin).Msg("Webhook failed")
		writeFailure(w, api.StatusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeFailure(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, api.SuccessResponse{Success: false, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
