package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartsupply/agent/internal/models"
	appErrors "github.com/smartsupply/agent/pkg/errors"
	"github.com/smartsupply/agent/pkg/response"
)

// PriceStore reads the cached bottle prices.
type PriceStore interface {
	ListBottlePrices(ctx context.Context) ([]models.BottlePrice, error)
	Find19LiterPrice(ctx context.Context) (string, bool, error)
}

// PriceHandler serves cached bottle prices.
type PriceHandler struct {
	store PriceStore
}

// NewPriceHandler constructs a PriceHandler.
func NewPriceHandler(store PriceStore) *PriceHandler {
	return &PriceHandler{store: store}
}

// List returns the cached bottle price list.
func (h *PriceHandler) List(c *gin.Context) {
	prices, err := h.store.ListBottlePrices(requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, prices, &response.Meta{Total: len(prices)})
}

// NineteenLiter returns the price of the 19 liter bottle.
func (h *PriceHandler) NineteenLiter(c *gin.Context) {
	price, ok, err := h.store.Find19LiterPrice(requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		response.Error(c, appErrors.ErrNotFound.WithMessage("no 19 liter bottle price cached"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"price": price})
}
