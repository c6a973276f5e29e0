package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor переводит доменные sentinel-ошибки в HTTP-статусы.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUserRequired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrAddressRequired),
		errors.Is(err, domain.ErrPaymentMethodInvalid),
		errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrItemQtyInvalid),
		errors.Is(err, domain.ErrItemPriceInvalid),
		errors.Is(err, domain.ErrCartKeyInvalid),
		errors.Is(err, domain.ErrTotalMismatch),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrProductNameRequired),
		errors.Is(err, domain.ErrProductPriceInvalid),
		errors.Is(err, domain.ErrProductStockInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает статусом из statusFor. Внутренние ошибки наружу
// не раскрываются.
func writeError(w http.ResponseWriter, logger *log.Entry, err error) {
	code, body := errorResponse(err)
	if code == http.StatusInternalServerError && logger != nil {
		logger.WithError(err).Error("internal error")
	}
	writeJSON(w, code, body)
}

// errorResponse возвращает статус и тело, которые writeError отдаст для err.
// Нужен там, где ответ надо зафиксировать до отправки (идемпотентный повтор).
func errorResponse(err error) (int, errorBody) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		return code, errorBody{Error: "internal error"}
	}
	return code, errorBody{Error: err.Error()}
}
