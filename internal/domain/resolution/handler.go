package resolution

import (
	"log/slog"
	"net/http"

	"dispatchly/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the resolution domain.
type Handler struct {
	resolver *Resolver
	intake   *Service
	rules    *RuleService
	prefs    *PreferenceService
}

// NewHandler creates a new resolution handler.
func NewHandler(resolver *Resolver, intake *Service, rules *RuleService, prefs *PreferenceService) *Handler {
	return &Handler{
		resolver: resolver,
		intake:   intake,
		rules:    rules,
		prefs:    prefs,
	}
}

// Resolve handles POST /api/v1/resolve
// Runs the pipeline synchronously and returns the recipient list.
func (h *Handler) Resolve(c *gin.Context) {
	var evt EventContext
	if err := c.ShouldBindJSON(&evt); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	recipients, err := h.resolver.Resolve(c.Request.Context(), &evt)
	if err != nil {
		slog.Error("resolve failed",
			"error", err,
			"dealer_id", evt.DealerID,
			"module", evt.Module,
			"event", evt.Event,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, ResolveResponse{
		Recipients: recipients,
		Count:      len(recipients),
	})
}

// AcceptEvent handles POST /api/v1/events
// Records the event and enqueues it for async resolution, returning 202.
func (h *Handler) AcceptEvent(c *gin.Context) {
	var evt EventContext
	if err := c.ShouldBindJSON(&evt); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	log, err := h.intake.Accept(c.Request.Context(), &evt)
	if err != nil {
		slog.Error("event intake failed",
			"error", err,
			"dealer_id", evt.DealerID,
			"module", evt.Module,
			"event", evt.Event,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusAccepted, log)
}

// GetResolution handles GET /api/v1/resolutions/:id
func (h *Handler) GetResolution(c *gin.Context) {
	id := c.Param("id")

	log, err := h.intake.GetResolution(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, log)
}

// ListResolutions handles GET /api/v1/resolutions
func (h *Handler) ListResolutions(c *gin.Context) {
	var filter ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	resp, err := h.intake.ListResolutions(c.Request.Context(), filter)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, resp)
}

// GetPreference handles GET /api/v1/dealers/:dealer/modules/:module/users/:user/preference
// Returns the stored record, lazily created with defaults on first access.
func (h *Handler) GetPreference(c *gin.Context) {
	pref, err := h.prefs.Get(
		c.Request.Context(),
		c.Param("user"),
		c.Param("dealer"),
		c.Param("module"),
	)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, pref)
}

// UpsertPreference handles PUT /api/v1/dealers/:dealer/modules/:module/users/:user/preference
func (h *Handler) UpsertPreference(c *gin.Context) {
	var pref NotificationPreference
	if err := c.ShouldBindJSON(&pref); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// Path parameters are authoritative for the record key.
	pref.UserID = c.Param("user")
	pref.DealerID = c.Param("dealer")
	pref.Module = c.Param("module")

	saved, err := h.prefs.Upsert(c.Request.Context(), &pref)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, saved)
}

// CreateRule handles POST /api/v1/dealers/:dealer/rules
func (h *Handler) CreateRule(c *gin.Context) {
	var rule DealerRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	rule.DealerID = c.Param("dealer")

	created, err := h.rules.Create(c.Request.Context(), &rule)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusCreated, created)
}

// UpdateRule handles PUT /api/v1/dealers/:dealer/rules/:id
func (h *Handler) UpdateRule(c *gin.Context) {
	var rule DealerRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	rule.DealerID = c.Param("dealer")
	rule.ID = c.Param("id")

	updated, err := h.rules.Update(c.Request.Context(), &rule)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, updated)
}

// GetRule handles GET /api/v1/dealers/:dealer/rules/:id
func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.rules.Get(c.Request.Context(), c.Param("dealer"), c.Param("id"))
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, rule)
}

// ListRules handles GET /api/v1/dealers/:dealer/rules
// An optional ?module= query narrows the list to one module.
func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.rules.List(c.Request.Context(), c.Param("dealer"), c.Query("module"))
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

// RegisterRoutes registers resolution routes to the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resolve", h.Resolve)
	rg.POST("/events", h.AcceptEvent)
	rg.GET("/resolutions", h.ListResolutions)
	rg.GET("/resolutions/:id", h.GetResolution)

	rg.GET("/dealers/:dealer/modules/:module/users/:user/preference", h.GetPreference)
	rg.PUT("/dealers/:dealer/modules/:module/users/:user/preference", h.UpsertPreference)

	rg.POST("/dealers/:dealer/rules", h.CreateRule)
	rg.GET("/dealers/:dealer/rules", h.ListRules)
	rg.GET("/dealers/:dealer/rules/:id", h.GetRule)
	rg.PUT("/dealers/:dealer/rules/:id", h.UpdateRule)
}
