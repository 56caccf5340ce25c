package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"matatu-feedback/database"
	"matatu-feedback/dispatch"
	"matatu-feedback/escalation"
	"matatu-feedback/models"
	"matatu-feedback/pipeline"
	ws "matatu-feedback/websocket"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

const serviceName = "matatu-feedback"

// Reports is the report pipeline behind the HTTP surface
type Reports interface {
	CreateReport(ctx context.Context, payload pipeline.Payload) (*models.CreateReportResponse, error)
	ForwardReport(ctx context.Context, id string) (*escalation.Result, error)
	ClassificationSummary(ctx context.Context, limit int) (models.ClassificationSummary, error)
}

// Store is the read side of the report store
type Store interface {
	GetReport(ctx context.Context, id string) (*models.Report, error)
	DeleteReport(ctx context.Context, id string) error
	GetMatatuStats(ctx context.Context, matatuID string) (*models.MatatuStats, error)
	GetHighPriorityIncidents(ctx context.Context, matatuID string) ([]models.Report, error)
	Ping(ctx context.Context) error
}

// AuditTrail exposes recent dispatch attempts
type AuditTrail interface {
	All() []dispatch.Attempt
	ForReport(reportID string) []dispatch.Attempt
}

// EventBus reports the state of the report event publisher
type EventBus interface {
	IsConnected() bool
}

// Handlers contains all HTTP handlers
type Handlers struct {
	reports  Reports
	store    Store
	trail    AuditTrail
	hub      *ws.Hub
	events   EventBus
	mockMode bool
}

// NewHandlers creates a new handlers instance. hub may be nil, in which
// case the live feed is unavailable; events is nil when publishing is off.
func NewHandlers(reports Reports, store Store, trail AuditTrail, hub *ws.Hub, events EventBus, mockMode bool) *Handlers {
	return &Handlers{
		reports:  reports,
		store:    store,
		trail:    trail,
		hub:      hub,
		events:   events,
		mockMode: mockMode,
	}
}

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

type validationResponse struct {
	StatusCode int                 `json:"statusCode"`
	Errors     []models.FieldError `json:"errors"`
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{StatusCode: status, Message: message})
}

// CreateReport handles POST /api/v1/reports
func (h *Handlers) CreateReport(c *gin.Context) {
	var payload pipeline.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, validationResponse{
			StatusCode: http.StatusBadRequest,
			Errors:     []models.FieldError{{Path: "body", Message: "Invalid JSON body: " + err.Error()}},
		})
		return
	}

	resp, err := h.reports.CreateReport(c.Request.Context(), payload)
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, validationResponse{
				StatusCode: http.StatusBadRequest,
				Errors:     verr.Errors,
			})
			return
		}
		log.WithError(err).Error("failed to create report")
		abortWithError(c, http.StatusInternalServerError, "Failed to save report")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetReport handles GET /api/v1/reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	report, err := h.store.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Failed to load report")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}

// DeleteReport handles DELETE /api/v1/reports/:id
func (h *Handlers) DeleteReport(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteReport(c.Request.Context(), id); err != nil {
		h.storeError(c, err, "Failed to delete report")
		return
	}
	log.WithField("report_id", id).Info("report deleted")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetMatatuStats handles GET /api/v1/matatus/:id/stats
func (h *Handlers) GetMatatuStats(c *gin.Context) {
	stats, err := h.store.GetMatatuStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Failed to load matatu stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// GetHighPriorityIncidents handles GET /api/v1/matatus/:id/incidents
func (h *Handlers) GetHighPriorityIncidents(c *gin.Context) {
	incidents, err := h.store.GetHighPriorityIncidents(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Failed to load incidents")
		return
	}
	if incidents == nil {
		incidents = []models.Report{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": incidents, "count": len(incidents)})
}

// ForwardReport handles POST /api/v1/admin/reports/:id/forward
func (h *Handlers) ForwardReport(c *gin.Context) {
	res, err := h.reports.ForwardReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Failed to load report")
		return
	}
	if !res.Success {
		c.JSON(http.StatusBadGateway, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ClassificationSummary handles GET /api/v1/admin/reports/classification-summary
func (h *Handlers) ClassificationSummary(c *gin.Context) {
	limit := pipeline.DefaultSummaryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			abortWithError(c, http.StatusBadRequest, "Invalid 'limit' parameter. Must be a positive integer.")
			return
		}
		limit = parsed
	}

	summary, err := h.reports.ClassificationSummary(c.Request.Context(), limit)
	if err != nil {
		log.WithError(err).Error("failed to build classification summary")
		abortWithError(c, http.StatusInternalServerError, "Failed to build classification summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DispatchAttempts handles GET /api/v1/admin/dispatch/attempts
func (h *Handlers) DispatchAttempts(c *gin.Context) {
	var attempts []dispatch.Attempt
	if reportID := c.Query("reportId"); reportID != "" {
		attempts = h.trail.ForReport(reportID)
	} else {
		attempts = h.trail.All()
	}
	if attempts == nil {
		attempts = []dispatch.Attempt{}
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts, "count": len(attempts)})
}

// ListenTriage handles GET /api/v1/admin/triage/listen
func (h *Handlers) ListenTriage(c *gin.Context) {
	if h.hub == nil {
		abortWithError(c, http.StatusServiceUnavailable, "Live feed unavailable")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade connection to WebSocket")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	log.Info("WebSocket connection established")
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := models.HealthResponse{
		Status:        "healthy",
		Service:       serviceName,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Database:      "up",
		EventBus:      "disabled",
		ForwarderMock: h.mockMode,
	}
	if h.events != nil {
		// Events are best effort, so a dropped broker does not fail the check
		response.EventBus = "down"
		if h.events.IsConnected() {
			response.EventBus = "up"
		}
	}
	if h.hub != nil {
		response.ConnectedClients, response.BroadcastEvents = h.hub.GetStats()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		log.WithError(err).Warn("health check: database unreachable")
		response.Status = "unhealthy"
		response.Database = "down"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handlers) storeError(c *gin.Context, err error, message string) {
	if errors.Is(err, database.ErrNotFound) {
		abortWithError(c, http.StatusNotFound, "Report not found")
		return
	}
	log.WithError(err).Error(message)
	abortWithError(c, http.StatusInternalServerError, message)
}
