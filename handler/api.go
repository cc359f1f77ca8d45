package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pyama86/YARO/domain/entity"
	"github.com/pyama86/YARO/engine"
)

// APIServer exposes incident submission and status queries over HTTP.
type APIServer struct {
	echo    *echo.Echo
	engine  *engine.Engine
	address string
}

func NewAPIServer(e *engine.Engine, address string) *APIServer {
	ec := echo.New()
	ec.HideBanner = true
	ec.HidePort = true
	ec.Use(middleware.Recover())

	s := &APIServer{
		echo:    ec,
		engine:  e,
		address: address,
	}

	ec.GET("/health", s.handleHealth)
	v1 := ec.Group("/api/v1")
	v1.POST("/incidents", s.handleSubmitIncident)
	v1.GET("/incidents/:number", s.handleIncidentStatus)

	return s
}

func (s *APIServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down API server", slog.Any("error", err))
		}
	}()

	slog.Info("API server started", slog.String("address", s.address))
	if err := s.echo.Start(s.address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type SubmitIncidentRequest struct {
	Number           string `json:"number"`
	Source           string `json:"source"`
	ResourceID       string `json:"resource_id"`
	Service          string `json:"service"`
	Severity         string `json:"severity"`
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
}

type SubmitIncidentResponse struct {
	Status   string `json:"status"`
	Incident string `json:"incident"`
}

func (s *APIServer) handleSubmitIncident(c echo.Context) error {
	var req SubmitIncidentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	source := req.Source
	if source == "" {
		source = "api"
	}
	incident := &entity.Incident{
		Number:           req.Number,
		Source:           source,
		ResourceID:       req.ResourceID,
		Service:          req.Service,
		Severity:         entity.NormalizeSeverity(req.Severity),
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
	}

	if err := s.engine.SubmitIncident(c.Request().Context(), incident); err != nil {
		switch {
		case errors.Is(err, engine.ErrDuplicateIncident), errors.Is(err, engine.ErrConcurrentAttempt):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	return c.JSON(http.StatusAccepted, SubmitIncidentResponse{
		Status:   "accepted",
		Incident: incident.Number,
	})
}

func (s *APIServer) handleIncidentStatus(c echo.Context) error {
	status, err := s.engine.GetIncidentStatus(c.Request().Context(), c.Param("number"))
	if err != nil {
		if errors.Is(err, engine.ErrIncidentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "incident not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, status)
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (s *APIServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
