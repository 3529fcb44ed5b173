package editor

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/tariffdesk/internal/logging"
	"github.com/mbd888/tariffdesk/internal/metrics"
	"github.com/mbd888/tariffdesk/internal/tariff"
	"github.com/mbd888/tariffdesk/internal/traces"
	"github.com/mbd888/tariffdesk/internal/validation"
)

// Download metadata for the exported document.
const (
	DownloadFilename    = "tariffs.json"
	DownloadContentType = "application/json; charset=utf-8"
)

// Editor event types
const (
	EventTariffAdded     = "tariff_added"
	EventTariffRemoved   = "tariff_removed"
	EventTariffUpdated   = "tariff_updated"
	EventPlanAdded       = "plan_added"
	EventPlanRemoved     = "plan_removed"
	EventPlanUpdated     = "plan_updated"
	EventOutputGenerated = "output_generated"
)

// EventEmitter broadcasts editor changes to connected clients
type EventEmitter interface {
	EmitEditorEvent(sessionID, kind string, data map[string]interface{})
}

// PlanView is a plan as the editor UI sees it, surrogate key included.
type PlanView struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Price    string   `json:"price"`
	Features []string `json:"features"`
}

// TariffView is a tariff as the editor UI sees it.
type TariffView struct {
	Key      string     `json:"key"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle"`
	Plans    []PlanView `json:"plans"`
}

func planView(p *tariff.Plan) PlanView {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	return PlanView{Key: p.Key, Name: p.Name, Price: p.Price, Features: features}
}

func tariffView(t *tariff.Tariff) TariffView {
	v := TariffView{Key: t.Key, ID: t.ID, Title: t.Title, Subtitle: t.Subtitle, Plans: make([]PlanView, 0, len(t.Plans))}
	for _, p := range t.Plans {
		v.Plans = append(v.Plans, planView(p))
	}
	return v
}

func collectionView(c tariff.Collection) []TariffView {
	out := make([]TariffView, 0, len(c))
	for _, t := range c {
		out = append(out, tariffView(t))
	}
	return out
}

// Handler provides HTTP endpoints for the tariff editor
type Handler struct {
	manager *Manager
	events  EventEmitter
}

// NewHandler creates a new editor handler
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// WithEvents adds an event emitter
func (h *Handler) WithEvents(events EventEmitter) *Handler {
	h.events = events
	return h
}

// RegisterRoutes sets up editor routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/editor/sessions")
	g.POST("", h.OpenSession)
	g.GET("/:id", h.GetSession)
	g.DELETE("/:id", h.CloseSession)
	g.POST("/:id/tariffs", h.AddTariff)
	g.PATCH("/:id/tariffs/:tariffKey", h.UpdateTariff)
	g.DELETE("/:id/tariffs/:tariffKey", h.RemoveTariff)
	g.POST("/:id/tariffs/:tariffKey/plans", h.AddPlan)
	g.PATCH("/:id/tariffs/:tariffKey/plans/:planKey", h.UpdatePlan)
	g.DELETE("/:id/tariffs/:tariffKey/plans/:planKey", h.RemovePlan)
	g.GET("/:id/output", h.Output)
	g.GET("/:id/download", h.Download)
}

// OpenSession handles POST /editor/sessions
func (h *Handler) OpenSession(c *gin.Context) {
	s, err := h.manager.Open(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "open_failed",
			"message": "Failed to open editor session",
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session": s,
		"tariffs": collectionView(s.Editor.View()),
	})
}

// GetSession handles GET /editor/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": s,
		"tariffs": collectionView(s.Editor.View()),
	})
}

// CloseSession handles DELETE /editor/sessions/:id
func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.manager.Close(c.Request.Context(), c.Param("id")); err != nil {
		sessionNotFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": true})
}

// AddTariff handles POST /editor/sessions/:id/tariffs
func (h *Handler) AddTariff(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	t := s.Editor.AddTariff()
	h.mutated(c, s, EventTariffAdded, map[string]interface{}{"tariffKey": t.Key})
	c.JSON(http.StatusCreated, gin.H{"tariff": tariffView(t)})
}

// UpdateTariff handles PATCH /editor/sessions/:id/tariffs/:tariffKey
func (h *Handler) UpdateTariff(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var patch TariffPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		invalidRequest(c)
		return
	}
	if errs := validation.Validate(
		validation.MaxLength("id", patch.ID, validation.MaxFieldLength),
		validation.MaxLength("title", patch.Title, validation.MaxFieldLength),
		validation.MaxLength("subtitle", patch.Subtitle, validation.MaxFieldLength),
		validation.NoNullBytes("id", patch.ID),
	); len(errs) > 0 {
		validation.Abort(c, errs)
		return
	}
	t, err := s.Editor.UpdateTariff(c.Param("tariffKey"), patch)
	if err != nil {
		notFound(c, err)
		return
	}
	h.mutated(c, s, EventTariffUpdated, map[string]interface{}{"tariffKey": t.Key, "id": t.ID})
	c.JSON(http.StatusOK, gin.H{"tariff": tariffView(t)})
}

// RemoveTariff handles DELETE /editor/sessions/:id/tariffs/:tariffKey.
// Removing an unknown tariff is not an error.
func (h *Handler) RemoveTariff(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	key := c.Param("tariffKey")
	removed := s.Editor.RemoveTariff(key)
	if removed {
		h.mutated(c, s, EventTariffRemoved, map[string]interface{}{"tariffKey": key})
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// AddPlan handles POST /editor/sessions/:id/tariffs/:tariffKey/plans
func (h *Handler) AddPlan(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	key := c.Param("tariffKey")
	p, err := s.Editor.AddPlan(key)
	if err != nil {
		notFound(c, err)
		return
	}
	h.mutated(c, s, EventPlanAdded, map[string]interface{}{"tariffKey": key, "planKey": p.Key})
	c.JSON(http.StatusCreated, gin.H{"plan": planView(p)})
}

// UpdatePlan handles PATCH /editor/sessions/:id/tariffs/:tariffKey/plans/:planKey
func (h *Handler) UpdatePlan(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var patch PlanPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		invalidRequest(c)
		return
	}
	if errs := validation.Validate(
		validation.MaxLength("name", patch.Name, validation.MaxFieldLength),
		validation.MaxLength("price", patch.Price, validation.MaxFieldLength),
		validation.MaxLength("features", patch.Features, validation.MaxFeaturesLength),
		validation.NoNullBytes("name", patch.Name),
	); len(errs) > 0 {
		validation.Abort(c, errs)
		return
	}
	key := c.Param("tariffKey")
	p, err := s.Editor.UpdatePlan(key, c.Param("planKey"), patch)
	if err != nil {
		notFound(c, err)
		return
	}
	h.mutated(c, s, EventPlanUpdated, map[string]interface{}{"tariffKey": key, "planKey": p.Key})
	c.JSON(http.StatusOK, gin.H{"plan": planView(p)})
}

// RemovePlan handles DELETE /editor/sessions/:id/tariffs/:tariffKey/plans/:planKey
func (h *Handler) RemovePlan(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	tariffKey, planKey := c.Param("tariffKey"), c.Param("planKey")
	removed := s.Editor.RemovePlan(tariffKey, planKey)
	if removed {
		h.mutated(c, s, EventPlanRemoved, map[string]interface{}{"tariffKey": tariffKey, "planKey": planKey})
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// Output handles GET /editor/sessions/:id/output. The text is what the
// editor UI places in its output area and copies to the clipboard.
func (h *Handler) Output(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	text, ok := h.serialize(c, s, "clipboard")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"json": text})
}

// Download handles GET /editor/sessions/:id/download
func (h *Handler) Download(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	text, ok := h.serialize(c, s, "download")
	if !ok {
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+DownloadFilename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, DownloadContentType, []byte(text))
}

func (h *Handler) serialize(c *gin.Context, s *Session, target string) (string, bool) {
	ctx, span := traces.StartSpan(c.Request.Context(), "editor.SerializeOutput",
		traces.SessionID(s.ID), traces.ExportTarget(target))
	defer span.End()

	text, err := s.Editor.SerializeOutput()
	if err != nil {
		traces.RecordError(span, err)
		logging.L(ctx).Error("failed to serialize tariffs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "serialize_failed",
			"message": "Failed to generate JSON",
		})
		return "", false
	}
	metrics.ExportsTotal.WithLabelValues(target).Inc()
	metrics.ExportBytes.Observe(float64(len(text)))
	if h.events != nil {
		h.events.EmitEditorEvent(s.ID, EventOutputGenerated, map[string]interface{}{
			"target": target,
			"bytes":  len(text),
		})
	}
	return text, true
}

// session resolves :id and tags the request context with it. It writes
// the 404 response itself when the session does not exist.
func (h *Handler) session(c *gin.Context) (*Session, bool) {
	id := c.Param("id")
	s, err := h.manager.Get(c.Request.Context(), id)
	if err != nil {
		sessionNotFound(c)
		return nil, false
	}
	c.Request = c.Request.WithContext(logging.WithSessionID(c.Request.Context(), id))
	return s, true
}

func (h *Handler) mutated(c *gin.Context, s *Session, kind string, data map[string]interface{}) {
	metrics.EditorMutations.WithLabelValues(kind).Inc()
	logging.L(c.Request.Context()).Debug("editor mutation", "event", kind)
	if h.events != nil {
		h.events.EmitEditorEvent(s.ID, kind, data)
	}
}

func sessionNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "session_not_found",
		"message": "Editor session not found",
	})
}

func invalidRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": "Invalid request body",
	})
}

func notFound(c *gin.Context, err error) {
	code := "not_found"
	switch {
	case errors.Is(err, ErrTariffNotFound):
		code = "tariff_not_found"
	case errors.Is(err, ErrPlanNotFound):
		code = "plan_not_found"
	}
	c.JSON(http.StatusNotFound, gin.H{
		"error":   code,
		"message": err.Error(),
	})
}
