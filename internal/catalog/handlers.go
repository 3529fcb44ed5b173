package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for the public catalog
type Handler struct {
	catalog *Catalog
}

// NewHandler creates a new catalog handler
func NewHandler(catalog *Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// RegisterRoutes sets up catalog routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tariffs", h.ListTariffs)
	r.GET("/tariffs/:id", h.GetTariff)
}

// ListTariffs handles GET /tariffs
func (h *Handler) ListTariffs(c *gin.Context) {
	tariffs := h.catalog.List()
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"tariffs": tariffs,
		"count":   len(tariffs),
	})
}

// GetTariff handles GET /tariffs/:id
func (h *Handler) GetTariff(c *gin.Context) {
	t, ok := h.catalog.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Tariff not found",
		})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"tariff": t})
}
