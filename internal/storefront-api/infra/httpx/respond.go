package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/text/language"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/i18n"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/interceptors/constants"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeMessage writes a localized error message for key.
func writeMessage(w http.ResponseWriter, r *http.Request, status int, key string, args ...any) {
	writeError(w, status, i18n.Sprintf(requestLanguage(r), key, args...))
}

func requestLanguage(r *http.Request) language.Tag {
	if tag, ok := r.Context().Value(constants.ContextKeyLanguage).(language.Tag); ok {
		return tag
	}
	return i18n.Match(r.URL.Query().Get(constants.QueryLang), r.Header.Get("Accept-Language"))
}

// writeDomainError maps the pipeline error taxonomy to a status code and a
// localized message. Internal detail never reaches the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *domain.ValidationError
		perr *domain.ProductError
		terr *domain.TransitionError
	)
	switch {
	case errors.As(err, &verr):
		writeMessage(w, r, http.StatusBadRequest, verr.Code)
	case errors.Is(err, domain.ErrProductUnavailable):
		name := ""
		if errors.As(err, &perr) {
			name = perr.Name
			if name == "" || name == domain.UnknownProductName {
				name = perr.ProductID
			}
		}
		writeMessage(w, r, http.StatusBadRequest, i18n.ProductUnavailable, name)
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, r, http.StatusNotFound, i18n.ProductNotFound)
	case errors.Is(err, domain.ErrOrderNotFound):
		writeMessage(w, r, http.StatusNotFound, i18n.OrderNotFound)
	case errors.As(err, &terr):
		writeMessage(w, r, http.StatusConflict, i18n.InvalidTransition, string(terr.From), string(terr.To))
	case errors.Is(err, domain.ErrPersistence):
		slog.ErrorContext(r.Context(), "order persistence failed", "error", err)
		writeMessage(w, r, http.StatusInternalServerError, i18n.OrderFailed)
	default:
		slog.ErrorContext(r.Context(), "unhandled error", "error", err)
		writeMessage(w, r, http.StatusInternalServerError, i18n.Internal)
	}
}
