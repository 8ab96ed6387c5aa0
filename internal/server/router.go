package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/myracetime/fitlink/internal/activity"
	"github.com/myracetime/fitlink/internal/credentials"
	"github.com/myracetime/fitlink/internal/providers"
	"go.uber.org/zap"
)

var errMissingProviderService = errors.New("provider service dependency required")

// ProviderService is the surface the HTTP layer needs from the provider
// subsystem.
type ProviderService interface {
	ProviderIDs() []string
	BeginConnect(providerID string) (providers.ConnectSession, error)
	CompleteConnect(ctx context.Context, providerID, redirectURL string) (credentials.Credential, error)
	Disconnect(ctx context.Context, providerID string) error
	IsConnected(providerID string) bool
	FetchActivities(ctx context.Context, providerID string, start, end *time.Time) ([]activity.Activity, error)
}

// Dependencies lists what the HTTP handler needs to operate.
type Dependencies struct {
	Providers ProviderService
	Logger    *zap.Logger
}

// NewHTTPHandler builds the gin router the mobile client talks to.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Providers == nil {
		return nil, errMissingProviderService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		providers: deps.Providers,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/providers", handler.handleProviderSummary)
	router.POST("/providers/:id/connect/start", handler.handleConnectStart)
	router.POST("/providers/:id/connect/complete", handler.handleConnectComplete)
	router.DELETE("/providers/:id", handler.handleDisconnect)
	router.GET("/providers/:id/status", handler.handleStatus)
	router.GET("/providers/:id/activities", handler.handleActivities)
	router.POST("/activities/normalize", handler.handleNormalize)

	return router, nil
}

type httpHandler struct {
	providers ProviderService
	logger    *zap.Logger
}

type providerSummary struct {
	ID        string `json:"id"`
	Connected bool   `json:"connected"`
}

type connectCompletePayload struct {
	RedirectURL string `json:"redirect_url"`
}

type normalizePayload struct {
	Source  string          `json:"source"`
	Payload json.RawMessage `json:"payload"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleProviderSummary(c *gin.Context) {
	ids := h.providers.ProviderIDs()
	summaries := make([]providerSummary, 0, len(ids))
	for _, id := range ids {
		summaries = append(summaries, providerSummary{
			ID:        id,
			Connected: h.providers.IsConnected(id),
		})
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *httpHandler) handleConnectStart(c *gin.Context) {
	session, err := h.providers.BeginConnect(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *httpHandler) handleConnectComplete(c *gin.Context) {
	var request connectCompletePayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.RedirectURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "redirect_url is required"})
		return
	}
	cred, err := h.providers.CompleteConnect(c.Request.Context(), c.Param("id"), request.RedirectURL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (h *httpHandler) handleDisconnect(c *gin.Context) {
	if err := h.providers.Disconnect(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connected": h.providers.IsConnected(c.Param("id"))})
}

func (h *httpHandler) handleActivities(c *gin.Context) {
	start, ok := h.parseTimeParam(c, "start")
	if !ok {
		return
	}
	end, ok := h.parseTimeParam(c, "end")
	if !ok {
		return
	}
	activities, err := h.providers.FetchActivities(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

func (h *httpHandler) handleNormalize(c *gin.Context) {
	var request normalizePayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source and payload are required"})
		return
	}
	normalized, err := activity.Normalize(activity.Source(request.Source), request.Payload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, normalized)
}

// parseTimeParam reads an optional RFC3339 query parameter. The second
// return value is false when the request has already been answered with 400.
func (h *httpHandler) parseTimeParam(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an RFC3339 timestamp"})
		return nil, false
	}
	return &parsed, true
}

// respondError maps domain error kinds onto HTTP statuses. The message is
// the error's own text, which is written to be user-displayable.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, providers.ErrUnknownProvider):
		status = http.StatusNotFound
	case errors.Is(err, providers.ErrNotImplemented):
		status = http.StatusNotImplemented
	case errors.Is(err, providers.ErrProviderNotConnected):
		status = http.StatusConflict
	case errors.Is(err, providers.ErrAuthorizationCancelled),
		errors.Is(err, providers.ErrAuthorizationDenied),
		errors.Is(err, providers.ErrMissingAuthorizationCode),
		errors.Is(err, providers.ErrInvalidState),
		errors.Is(err, activity.ErrUnknownActivitySource):
		status = http.StatusBadRequest
	case errors.Is(err, providers.ErrTokenExchangeFailed),
		errors.Is(err, providers.ErrProviderAPI):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	} else {
		h.logger.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
