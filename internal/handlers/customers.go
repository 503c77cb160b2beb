package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smartsupply/agent/internal/customersync"
	"github.com/smartsupply/agent/internal/models"
	appErrors "github.com/smartsupply/agent/pkg/errors"
	"github.com/smartsupply/agent/pkg/response"
)

const maxSearchLimit = 200

// CustomerStore is the part of the local cache the customer endpoints read.
type CustomerStore interface {
	ListCustomers(ctx context.Context) ([]models.CachedCustomer, error)
	GetCustomer(ctx context.Context, id string) (models.CachedCustomer, bool, error)
	FindByPhone(ctx context.Context, phone string) ([]models.CachedCustomer, error)
	Count(ctx context.Context) (int64, error)
	GetLastSyncTime(ctx context.Context) (int64, bool, error)
	ClearAll(ctx context.Context) error
}

// Syncer runs and reports customer syncs.
type Syncer interface {
	SyncCustomers(ctx context.Context) customersync.Result
	ShouldSync(ctx context.Context) bool
	State() customersync.State
}

// LocalSearcher answers one-shot searches from the cache.
type LocalSearcher interface {
	SearchLocal(ctx context.Context, query string) []models.CachedCustomer
}

// CustomerHandler serves the customer directory kept on the device.
type CustomerHandler struct {
	store    CustomerStore
	syncer   Syncer
	searcher LocalSearcher
}

// NewCustomerHandler constructs a CustomerHandler.
func NewCustomerHandler(store CustomerStore, syncer Syncer, searcher LocalSearcher) *CustomerHandler {
	return &CustomerHandler{store: store, syncer: syncer, searcher: searcher}
}

// Sync runs a sync now and reports its outcome. A failed sync is returned as
// an error carrying the user-facing message.
func (h *CustomerHandler) Sync(c *gin.Context) {
	result := h.syncer.SyncCustomers(requestContext(c))
	if !result.Success {
		response.Error(c, appErrors.ErrSyncFailed.WithMessage(result.Message))
		return
	}
	response.Success(c, http.StatusOK, result)
}

type syncStatus struct {
	ShouldSync bool               `json:"shouldSync"`
	LastSynced *int64             `json:"lastSynced"`
	Count      int64              `json:"count"`
	State      customersync.State `json:"state"`
}

// SyncStatus reports cache freshness and whether periodic sync is running.
func (h *CustomerHandler) SyncStatus(c *gin.Context) {
	ctx := requestContext(c)

	status := syncStatus{
		ShouldSync: h.syncer.ShouldSync(ctx),
		State:      h.syncer.State(),
	}

	last, ok, err := h.store.GetLastSyncTime(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	if ok {
		status.LastSynced = &last
	}

	count, err := h.store.Count(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	status.Count = count

	response.Success(c, http.StatusOK, status)
}

// List returns every cached customer.
func (h *CustomerHandler) List(c *gin.Context) {
	customers, err := h.store.ListCustomers(requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, customers, &response.Meta{Total: len(customers)})
}

// Get returns one cached customer.
func (h *CustomerHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	customer, ok, err := h.store.GetCustomer(requestContext(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		response.Error(c, appErrors.ErrNotFound.WithMessage("customer not found"))
		return
	}
	response.Success(c, http.StatusOK, customer)
}

// Search runs a one-shot search over the local cache. Storage problems
// yield an empty list.
func (h *CustomerHandler) Search(c *gin.Context) {
	query := c.Query("q")
	customers := h.searcher.SearchLocal(requestContext(c), query)

	limit := parseIntQuery(c, "limit", 0)
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	if limit > 0 && len(customers) > limit {
		customers = customers[:limit]
	}

	response.SuccessWithMeta(c, http.StatusOK, customers, &response.Meta{
		Total:  len(customers),
		Query:  query,
		Source: "local",
	})
}

// Lookup finds customers by phone or WhatsApp number in any common format.
func (h *CustomerHandler) Lookup(c *gin.Context) {
	phone := strings.TrimSpace(c.Query("phone"))
	if phone == "" {
		response.Error(c, appErrors.NewBadRequest("phone is required"))
		return
	}

	customers, err := h.store.FindByPhone(requestContext(c), phone)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, customers, &response.Meta{Total: len(customers)})
}

// ClearCache empties the customer directory. Prices and the last sync time
// are kept.
func (h *CustomerHandler) ClearCache(c *gin.Context) {
	if err := h.store.ClearAll(requestContext(c)); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cleared": true})
}
