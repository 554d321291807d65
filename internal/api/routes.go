package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/internal/auth"
	"github.com/loic-ops/medical-transcription/internal/websocket"
	"github.com/loic-ops/medical-transcription/usecase"
)

const serviceName = "medical-transcription"

type handlers struct {
	service TranscriptionService
	logger  *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	service TranscriptionService,
	hub *websocket.Hub,
	tokens *auth.Tokens,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) {
	h := &handlers{service: service, logger: logger}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: serviceName,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	requireUser := tokens.RequireUser(logger)

	mt := e.Group("/medical_transcription", requireUser)

	// Transcription service actions
	mt.POST("/templates", h.templates)
	mt.POST("/lookup", h.lookup)
	mt.POST("/transcribe", h.transcribe)
	mt.POST("/validate", h.validate)

	// Downloads
	mt.GET("/download/:id/:file_type", h.download)
	mt.GET("/report/:id", h.report)

	// Sessions
	mt.POST("/sessions", h.createSession)
	mt.GET("/sessions", h.listSessions)
	mt.GET("/sessions/:id", h.getSession)
	mt.GET("/sessions/:id/data", h.sessionData)
	mt.PUT("/sessions/:id/report", h.updateReport)

	// Recording channel
	e.GET("/ws", hub.HandleWebSocket, requireUser)
}

// bind decodes the request body; on failure it has already answered 400
func (h *handlers) bind(c echo.Context, req interface{}) bool {
	if err := c.Bind(req); err != nil {
		h.logger.Warn("Failed to bind request",
			zap.String("path", c.Path()),
			zap.Error(err))
		_ = c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
		return false
	}
	return true
}

func (h *handlers) templates(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.ListTemplates(c.Request().Context()))
}

func (h *handlers) lookup(c echo.Context) error {
	var req usecase.LookupRequest
	if !h.bind(c, &req) {
		return nil
	}
	return c.JSON(http.StatusOK, h.service.Lookup(c.Request().Context(), req))
}

func (h *handlers) transcribe(c echo.Context) error {
	var req usecase.TranscribeRequest
	if !h.bind(c, &req) {
		return nil
	}
	return c.JSON(http.StatusOK, h.service.Transcribe(c.Request().Context(), req))
}

func (h *handlers) validate(c echo.Context) error {
	var req usecase.ValidateRequest
	if !h.bind(c, &req) {
		return nil
	}
	return c.JSON(http.StatusOK, h.service.Validate(c.Request().Context(), req))
}

func (h *handlers) download(c echo.Context) error {
	attachment, err := h.service.DownloadFile(c.Request().Context(), c.Param("id"), c.Param("file_type"))
	if err != nil {
		return h.notFound(c, err)
	}
	return sendAttachment(c, attachment)
}

func (h *handlers) report(c echo.Context) error {
	attachment, err := h.service.DownloadReport(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.notFound(c, err)
	}
	return sendAttachment(c, attachment)
}

func (h *handlers) notFound(c echo.Context, err error) error {
	h.logger.Info("Download not available",
		zap.String("path", c.Request().URL.Path),
		zap.String("kind", domain.KindOf(err).String()),
		zap.Error(err))
	return c.JSON(http.StatusNotFound, domain.Failure(err))
}

// sendAttachment serves a stored file as a download
func sendAttachment(c echo.Context, attachment *entities.Attachment) error {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", attachment.Filename))
	return c.Blob(http.StatusOK, attachment.Kind.ContentType(), attachment.Data)
}

func (h *handlers) createSession(c echo.Context) error {
	var req usecase.CreateSessionRequest
	if !h.bind(c, &req) {
		return nil
	}
	return c.JSON(http.StatusOK, h.service.CreateSession(c.Request().Context(), req))
}

func (h *handlers) listSessions(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return c.JSON(http.StatusOK, h.service.ListSessions(c.Request().Context(), limit))
}

func (h *handlers) getSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.GetSession(c.Request().Context(), c.Param("id")))
}

func (h *handlers) sessionData(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.SessionData(c.Request().Context(), c.Param("id")))
}

func (h *handlers) updateReport(c echo.Context) error {
	var req usecase.UpdateReportRequest
	if !h.bind(c, &req) {
		return nil
	}
	return c.JSON(http.StatusOK, h.service.UpdateReport(c.Request().Context(), c.Param("id"), req))
}
