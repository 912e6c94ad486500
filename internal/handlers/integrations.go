package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wahyu285/loundry/internal/platform/httpx"
	"github.com/wahyu285/loundry/internal/services"
)

type chatStatusRequest struct {
	Message string `json:"message"`
}

// IntegrationHandlers answers the chat bot status lookup.
type IntegrationHandlers struct {
	chat        services.ChatService
	limiter     rateLimiter
	retryWindow time.Duration
}

// IntegrationOption customises IntegrationHandlers.
type IntegrationOption func(*IntegrationHandlers)

// WithChatRateLimit caps status lookups per client within window.
func WithChatRateLimit(limit int, window time.Duration, clock func() time.Time) IntegrationOption {
	return func(h *IntegrationHandlers) {
		h.limiter = newFixedWindowLimiter(limit, window, clock)
		h.retryWindow = window
	}
}

// NewIntegrationHandlers constructs the /integrations handlers.
func NewIntegrationHandlers(chat services.ChatService, opts ...IntegrationOption) *IntegrationHandlers {
	h := &IntegrationHandlers{chat: chat}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers /integrations/chat/status for every method so other methods get 405.
func (h *IntegrationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.HandleFunc("/chat/status", h.chatStatus)
}

func (h *IntegrationHandlers) chatStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		httpx.WriteError(ctx, w, httpx.NewError("method_not_allowed", "Invalid request method", http.StatusMethodNotAllowed))
		return
	}
	if h.chat == nil {
		serviceUnavailable(ctx, w, "chat")
		return
	}
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		w.Header().Set("Retry-After", strconv.Itoa(int(h.retryWindow.Seconds())))
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many status lookups", http.StatusTooManyRequests))
		return
	}
	var req chatStatusRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	reply, err := h.chat.Reply(ctx, req.Message)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"reply": reply})
}
