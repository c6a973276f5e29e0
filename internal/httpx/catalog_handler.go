package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
	"github.com/vladislavdragonenkov/nursery/internal/service/catalog"
)

// CatalogHandler обслуживает витрину и кабинет продавца.
type CatalogHandler struct {
	service *catalog.Service
	logger  *log.Entry
}

// NewCatalogHandler создаёт обработчик каталога.
func NewCatalogHandler(service *catalog.Service, logger *log.Entry) *CatalogHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http_catalog")
	}
	return &CatalogHandler{service: service, logger: logger}
}

// Register монтирует маршруты каталога.
func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/api/plants", h.list)
	r.Get("/api/plants/{id}", h.get)
	r.Post("/api/plants", h.publish)
	r.Get("/api/my-plants", h.listMine)
	r.Delete("/api/admin/plants/{id}", h.remove)
	r.Post("/api/admin/plants/{id}/restore", h.restore)
}

type publishRequest struct {
	Name       string `json:"name"`
	ImagePath  string `json:"image_path"`
	SizeLabel  string `json:"size_label"`
	CareNotes  string `json:"care_notes"`
	PriceMinor int64  `json:"price_minor"`
	Stock      int64  `json:"stock"`
}

type productResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ImagePath  string     `json:"image_path,omitempty"`
	SizeLabel  string     `json:"size_label,omitempty"`
	CareNotes  string     `json:"care_notes,omitempty"`
	PriceMinor int64      `json:"price_minor"`
	Stock      int64      `json:"stock"`
	Sold       int64      `json:"sold"`
	Seller     string     `json:"seller"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	Reason     string     `json:"delete_reason,omitempty"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:         p.ID,
		Name:       p.Name,
		ImagePath:  p.ImagePath,
		SizeLabel:  p.SizeLabel,
		CareNotes:  p.CareNotes,
		PriceMinor: p.PriceMinor,
		Stock:      p.Stock,
		Sold:       p.Sold,
		Seller:     p.SellerEmail,
		DeletedAt:  p.DeletedAt,
		Reason:     p.DeleteReason,
	}
}

func toProductListResponse(list []domain.Product) []productResponse {
	resp := make([]productResponse, 0, len(list))
	for _, p := range list {
		resp = append(resp, toProductResponse(p))
	}
	return resp
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductListResponse(list))
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Get(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *CatalogHandler) publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}

	product, err := h.service.Publish(r.Context(), IdentityFrom(r.Context()), catalog.PublishRequest{
		Name:       req.Name,
		ImagePath:  req.ImagePath,
		SizeLabel:  req.SizeLabel,
		CareNotes:  req.CareNotes,
		PriceMinor: req.PriceMinor,
		Stock:      req.Stock,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *CatalogHandler) listMine(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListMine(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductListResponse(list))
}

type removeRequest struct {
	Reason string `json:"reason"`
}

func (h *CatalogHandler) remove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	// Тело опционально: DELETE без причины тоже принимается.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.service.Remove(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), req.Reason); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *CatalogHandler) restore(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Restore(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
