package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/mebel-storefront/internal/coordinator/sagalog"
	"github.com/jcmexdev/mebel-storefront/internal/notifier"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/i18n"
)

// SettingsInvalidator drops cached settings after an update.
type SettingsInvalidator interface {
	Invalidate(ctx context.Context) error
}

type TextSender interface {
	SendText(ctx context.Context, text string) error
}

// AdminHandler serves the API-key protected order and settings tooling.
type AdminHandler struct {
	orders      OrderService
	settings    ports.SettingsRepository
	invalidator SettingsInvalidator // nil when settings are not cached
	sender      TextSender
	history     sagalog.Reader
}

func NewAdminHandler(
	orders OrderService,
	settings ports.SettingsRepository,
	invalidator SettingsInvalidator,
	sender TextSender,
	history sagalog.Reader,
) *AdminHandler {
	return &AdminHandler{orders: orders, settings: settings, invalidator: invalidator, sender: sender, history: history}
}

// FindOrders looks orders up by ?number=. Numbers can repeat, so every match
// is returned.
func (h *AdminHandler) FindOrders(w http.ResponseWriter, r *http.Request) {
	number := strings.TrimSpace(r.URL.Query().Get("number"))
	if number == "" {
		writeMessage(w, r, http.StatusBadRequest, i18n.OrderNumberMissing)
		return
	}
	orders, err := h.orders.FindOrders(r.Context(), number)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = mapOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// OrderHistory lists the write saga transitions of an order. A rolled-back
// order has no header, so the history is the only trace left of it.
func (h *AdminHandler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if len(entries) == 0 {
		writeMessage(w, r, http.StatusNotFound, i18n.OrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, i18n.MalformedBody)
		return
	}
	next, ok := domain.ParseStatus(req.Status)
	if !ok {
		writeMessage(w, r, http.StatusBadRequest, i18n.InvalidStatus)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), next)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// GetTelegramSettings never returns the full bot token.
func (h *AdminHandler) GetTelegramSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.GetTelegramSettings(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TelegramSettingsDTO{
		BotToken: maskToken(s.BotToken),
		ChatID:   s.ChatID,
		Enabled:  s.Enabled,
	})
}

func (h *AdminHandler) PutTelegramSettings(w http.ResponseWriter, r *http.Request) {
	var req TelegramSettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, i18n.MalformedBody)
		return
	}
	s := domain.TelegramSettings{
		BotToken: strings.TrimSpace(req.BotToken),
		ChatID:   strings.TrimSpace(req.ChatID),
		Enabled:  req.Enabled,
	}
	if err := h.settings.SaveTelegramSettings(r.Context(), s); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "settings cache invalidation failed", "error", err)
		}
	}
	slog.InfoContext(r.Context(), "telegram settings updated", "enabled", s.Enabled)
	writeJSON(w, http.StatusOK, TelegramSettingsDTO{BotToken: maskToken(s.BotToken), ChatID: s.ChatID, Enabled: s.Enabled})
}

// SendTelegram sends free text to the configured chat. Unlike order
// notifications, the outcome is reported to the caller.
func (h *AdminHandler) SendTelegram(w http.ResponseWriter, r *http.Request) {
	var req SendTelegramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeMessage(w, r, http.StatusBadRequest, i18n.MalformedBody)
		return
	}

	err := h.sender.SendText(r.Context(), req.Text)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, notifier.ErrNotConfigured):
		writeMessage(w, r, http.StatusServiceUnavailable, i18n.NotificationSkipped)
	default:
		slog.ErrorContext(r.Context(), "telegram send failed", "error", err)
		writeMessage(w, r, http.StatusBadGateway, i18n.NotificationFailed)
	}
}
