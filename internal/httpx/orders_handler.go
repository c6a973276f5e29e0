package httpx

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
	"github.com/vladislavdragonenkov/nursery/internal/service/orders"
)

// idempotencyTTL — горизонт хранения ключей идемпотентного оформления.
const idempotencyTTL = 24 * time.Hour

// OrdersHandler обслуживает покупательские и админские операции над заказами.
type OrdersHandler struct {
	service     *orders.Service
	idempotency domain.IdempotencyRepository
	logger      *log.Entry
}

// NewOrdersHandler создаёт обработчик заказов. idempotency опционален:
// без него заголовок Idempotency-Key игнорируется.
func NewOrdersHandler(service *orders.Service, idempotency domain.IdempotencyRepository, logger *log.Entry) *OrdersHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http_orders")
	}
	return &OrdersHandler{service: service, idempotency: idempotency, logger: logger}
}

// Register монтирует маршруты заказов.
func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/api/orders", h.create)
	r.Get("/api/orders", h.listMine)
	r.Get("/api/orders/{id}", h.get)
	r.Get("/api/orders/{id}/timeline", h.timeline)
	r.Get("/api/admin/orders", h.adminList)
	r.Post("/api/admin/orders/{id}/status", h.changeStatus)
}

type createOrderRequest struct {
	Cart          map[string]int64 `json:"cart"`
	Address       string           `json:"address"`
	PaymentMethod string           `json:"payment_method"`
	TotalMinor    *int64           `json:"total_minor,omitempty"`
}

type orderItemResponse struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	ImagePath      string `json:"image_path,omitempty"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Qty            int64  `json:"qty"`
	SubtotalMinor  int64  `json:"subtotal_minor"`
}

type orderResponse struct {
	ID                  string              `json:"id"`
	Status              string              `json:"status"`
	PaymentMethod       string              `json:"payment_method"`
	Address             string              `json:"address"`
	TotalMinor          int64               `json:"total_minor"`
	Items               []orderItemResponse `json:"items"`
	InventoryAppliedAt  *time.Time          `json:"inventory_applied_at,omitempty"`
	InventoryRevertedAt *time.Time          `json:"inventory_reverted_at,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	RedirectURL         string              `json:"redirect_url,omitempty"`
}

func toOrderResponse(order domain.Order, redirectURL string) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			ImagePath:      item.ImagePath,
			UnitPriceMinor: item.UnitPriceMinor,
			Qty:            item.Qty,
			SubtotalMinor:  item.SubtotalMinor,
		})
	}
	return orderResponse{
		ID:                  order.ID,
		Status:              string(order.Status),
		PaymentMethod:       string(order.PaymentMethod),
		Address:             order.Address,
		TotalMinor:          order.TotalMinor,
		Items:               items,
		InventoryAppliedAt:  order.InventoryAppliedAt,
		InventoryRevertedAt: order.InventoryRevertedAt,
		CreatedAt:           order.CreatedAt,
		RedirectURL:         redirectURL,
	}
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read body"})
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if h.beginIdempotent(w, key, body) {
			return
		}
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		reject := errorBody{Error: "invalid json"}
		rejectBody, _ := json.Marshal(reject)
		h.finishIdempotent(key, http.StatusBadRequest, rejectBody, false)
		writeJSON(w, http.StatusBadRequest, reject)
		return
	}

	cart, err := domain.ParseCart(req.Cart)
	if err != nil {
		h.failIdempotent(key, err)
		writeError(w, h.logger, err)
		return
	}

	result, err := h.service.Create(r.Context(), IdentityFrom(r.Context()), orders.CreateRequest{
		Cart:               cart,
		Address:            req.Address,
		PaymentMethod:      domain.PaymentMethod(req.PaymentMethod),
		ExpectedTotalMinor: req.TotalMinor,
	})
	if err != nil {
		h.failIdempotent(key, err)
		writeError(w, h.logger, err)
		return
	}

	resp := toOrderResponse(result.Order, result.RedirectURL)
	respBody, _ := json.Marshal(resp)
	h.finishIdempotent(key, http.StatusCreated, respBody, true)
	writeJSON(w, http.StatusCreated, resp)
}

// beginIdempotent регистрирует ключ. Возвращает true, если ответ уже отдан
// (повтор или конфликт) и обработку продолжать не надо.
func (h *OrdersHandler) beginIdempotent(w http.ResponseWriter, key string, body []byte) bool {
	hash := sha256.Sum256(body)
	requestHash := hex.EncodeToString(hash[:])

	_, err := h.idempotency.CreateProcessing(key, requestHash, time.Now().UTC().Add(idempotencyTTL))
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		writeError(w, h.logger, domain.ErrIdempotencyHashMismatch)
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		record, getErr := h.idempotency.Get(key)
		if getErr != nil {
			writeError(w, h.logger, getErr)
			return true
		}
		if !record.Replayable() {
			writeJSON(w, http.StatusConflict, errorBody{Error: "request is being processed"})
			return true
		}
		// Повтор: отдаём сохранённый ответ как есть.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(record.HTTPStatus)
		_, _ = w.Write(record.ResponseBody)
	default:
		writeError(w, h.logger, err)
	}
	return true
}

// failIdempotent фиксирует неуспешный исход с тем же телом, которое ушло
// клиенту: повтор по ключу получит исходный JSON ошибки, а не пустой ответ.
func (h *OrdersHandler) failIdempotent(key string, cause error) {
	code, body := errorResponse(cause)
	respBody, _ := json.Marshal(body)
	h.finishIdempotent(key, code, respBody, false)
}

func (h *OrdersHandler) finishIdempotent(key string, httpStatus int, respBody []byte, success bool) {
	if key == "" || h.idempotency == nil {
		return
	}
	var err error
	if success {
		err = h.idempotency.MarkDone(key, respBody, httpStatus)
	} else {
		err = h.idempotency.MarkFailed(key, respBody, httpStatus)
	}
	if err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to finalize idempotency record")
	}
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, ""))
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListByUser(r.Context(), IdentityFrom(r.Context()), 100)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(list))
}

func (h *OrdersHandler) adminList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), IdentityFrom(r.Context()), 500)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(list))
}

func toOrderListResponse(list []domain.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(list))
	for _, order := range list {
		resp = append(resp, toOrderResponse(order, ""))
	}
	return resp
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}
	target, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown status"})
		return
	}

	order, err := h.service.ChangeStatus(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), target)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, ""))
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func (h *OrdersHandler) timeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Timeline(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp := make([]timelineEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, timelineEventResponse{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred})
	}
	writeJSON(w, http.StatusOK, resp)
}
