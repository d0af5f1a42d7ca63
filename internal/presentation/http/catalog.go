package httppresentation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type productResponse struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Photos      []string    `json:"photos"`
	Price       json.Number `json:"price"`
	Quantity    int         `json:"quantity"`
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	p, err := h.product.Execute(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	photos := p.Photos
	if photos == nil {
		photos = []string{}
	}
	writeJSON(w, http.StatusOK, productResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Photos:      photos,
		Price:       json.Number(p.Price.StringFixed(2)),
		Quantity:    p.Quantity,
	})
}
