package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
	"github.com/vladislavdragonenkov/nursery/internal/service/payment"
)

// Заголовки входящего вебхука провайдера.
const (
	HeaderWebhookSignature = "X-Razorpay-Signature"
	HeaderWebhookEventID   = "X-Razorpay-Event-Id"
)

// PaymentHandler принимает подтверждения оплаты: вебхук провайдера и
// локальную имитацию.
type PaymentHandler struct {
	gateway *payment.Gateway
	logger  *log.Entry
}

// NewPaymentHandler создаёт обработчик подтверждений оплаты.
func NewPaymentHandler(gateway *payment.Gateway, logger *log.Entry) *PaymentHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http_payment")
	}
	return &PaymentHandler{gateway: gateway, logger: logger}
}

// Register монтирует маршруты оплаты.
func (h *PaymentHandler) Register(r chi.Router) {
	r.Post("/payment-webhook", h.webhook)
	r.Post("/api/fake-payment/confirm", h.confirmSimulated)
}

func (h *PaymentHandler) webhook(w http.ResponseWriter, r *http.Request) {
	// Подпись считается от сырого тела, поэтому читается до любого разбора.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read body"})
		return
	}

	outcome, err := h.gateway.HandleWebhook(
		r.Context(),
		body,
		r.Header.Get(HeaderWebhookSignature),
		r.Header.Get(HeaderWebhookEventID),
	)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	// Любой обработанный исход, включая отмену по нехватке остатка, для
	// провайдера успех: повторная доставка ничего не изменит.
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"outcome": string(outcome),
	})
}

type confirmRequest struct {
	PaymentLinkID string `json:"paymentLinkId"`
	Token         string `json:"token"`
}

func (h *PaymentHandler) confirmSimulated(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}

	outcome, err := h.gateway.ConfirmSimulated(r.Context(), req.PaymentLinkID, req.Token)
	if err != nil {
		// В продакшене маршрут ведёт себя как отсутствующий.
		if errors.Is(err, domain.ErrForbidden) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": outcome != domain.WebhookOutcomeCancelled,
		"outcome": string(outcome),
	})
}
