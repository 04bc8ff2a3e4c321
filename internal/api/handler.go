package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/eugenenazirov/confkit/internal/storage"
	"github.com/eugenenazirov/confkit/pkg/confkit"
	"github.com/eugenenazirov/confkit/pkg/source"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// OverrideStore holds runtime property overrides.
type OverrideStore interface {
	source.Source
	Set(key, value string) error
	Delete(key string) bool
}

// Handler serves resolved configuration and manages runtime overrides.
type Handler struct {
	config    confkit.Config
	overrides OverrideStore

	clock func() time.Time

	mu                 sync.RWMutex
	overridesUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler. overrides should be one of the sources of cfg
// for overrides to take effect.
func NewHandler(cfg confkit.Config, overrides OverrideStore, opts ...HandlerOption) *Handler {
	h := &Handler{
		config:    cfg,
		overrides: overrides,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.overridesUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
		Sources:   len(h.config.Sources()),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListProperties(w http.ResponseWriter, r *http.Request) {
	_ = r
	props := confkit.Properties(h.config)
	writeJSON(w, http.StatusOK, propertiesResponse{
		Properties: props,
		Count:      len(props),
	})
}

func (h *Handler) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	src, ok := h.config.Source(key)
	if !ok {
		writeError(w, http.StatusNotFound, "Property not found", key)
		return
	}
	value, err := h.config.Value(key)
	if err != nil {
		if errors.Is(err, confkit.ErrNoSuchElement) {
			writeError(w, http.StatusNotFound, "Property not found", key)
			return
		}
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, propertyResponse{
		Key:     key,
		Value:   value,
		Source:  src.Name(),
		Ordinal: src.Ordinal(),
	})
}

func (h *Handler) handleListSources(w http.ResponseWriter, r *http.Request) {
	_ = r
	sources := h.config.Sources()
	resp := make([]sourceResponse, 0, len(sources))
	for _, s := range sources {
		resp = append(resp, sourceResponse{
			Name:       s.Name(),
			Ordinal:    s.Ordinal(),
			Properties: s.Properties(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, overridesResponse{
		Overrides: h.overrides.Properties(),
		UpdatedAt: h.currentOverridesUpdatedAt(),
	})
}

func (h *Handler) handlePutOverride(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "value is required")
		return
	}

	if err := h.overrides.Set(key, *req.Value); err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			writeError(w, http.StatusBadRequest, "Invalid key", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	h.markOverridesUpdated()

	writeJSON(w, http.StatusOK, overrideResponse{
		Key:       key,
		Value:     *req.Value,
		UpdatedAt: h.currentOverridesUpdatedAt(),
		Message:   "Override stored",
	})
}

func (h *Handler) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	if !h.overrides.Delete(key) {
		writeError(w, http.StatusNotFound, "Override not found", key)
		return
	}

	h.markOverridesUpdated()

	writeJSON(w, http.StatusOK, overrideResponse{
		Key:       key,
		UpdatedAt: h.currentOverridesUpdatedAt(),
		Message:   "Override removed",
	})
}

func (h *Handler) currentOverridesUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.overridesUpdatedAt
}

func (h *Handler) markOverridesUpdated() {
	h.mu.Lock()
	h.overridesUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type overrideRequest struct {
	Value *string `json:"value"`
}

type propertyResponse struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Source  string `json:"source"`
	Ordinal int    `json:"ordinal"`
}

type propertiesResponse struct {
	Properties map[string]string `json:"properties"`
	Count      int               `json:"count"`
}

type sourceResponse struct {
	Name       string            `json:"name"`
	Ordinal    int               `json:"ordinal"`
	Properties map[string]string `json:"properties"`
}

type overridesResponse struct {
	Overrides map[string]string `json:"overrides"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type overrideResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	Message   string    `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Sources   int       `json:"sources"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
