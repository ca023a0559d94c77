// Package server provides the HTTP API for submitting and polling
// extraction jobs.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jobflow/internal/checkpoint"
	"github.com/fyrsmithlabs/jobflow/internal/config"
	"github.com/fyrsmithlabs/jobflow/internal/state"
)

// Runner executes one workflow pass for a job.
type Runner interface {
	Run(ctx context.Context, jobID string, initial *state.WorkflowState) (*state.WorkflowState, error)
}

// Job lifecycle statuses reported by the API.
const (
	StatusRunning    = "running"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
	StatusIncomplete = "incomplete" // checkpointed but not finished; retryable
)

// Server provides HTTP endpoints for jobflow.
type Server struct {
	echo   *echo.Echo
	runner Runner
	store  checkpoint.Store
	logger *zap.Logger
	config config.ServerConfig

	mu   sync.Mutex
	jobs map[string]*jobStatus // in-flight and recently finished jobs
}

type jobStatus struct {
	status string
	err    string
}

// NewServer creates a new HTTP server.
func NewServer(runner Runner, store checkpoint.Store, logger *zap.Logger, cfg config.ServerConfig) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		runner: runner,
		store:  store,
		logger: logger,
		config: cfg,
		jobs:   make(map[string]*jobStatus),
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/jobs", s.handleSubmitJob)
	v1.GET("/jobs/:id", s.handleGetJob)
	v1.POST("/jobs/:id/retry", s.handleRetryJob)
}

// SubmitJobRequest is the request body for POST /api/v1/jobs.
type SubmitJobRequest struct {
	Location  string            `json:"location"`
	MediaType string            `json:"media_type"`
	Hints     map[string]string `json:"hints,omitempty"`
}

// SubmitJobResponse is the response body for POST /api/v1/jobs.
type SubmitJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobStatusResponse is the response body for GET /api/v1/jobs/:id.
type JobStatusResponse struct {
	JobID  string               `json:"job_id"`
	Status string               `json:"status"`
	Error  string               `json:"error,omitempty"`
	State  *state.WorkflowState `json:"state,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleSubmitJob accepts a document reference and starts a workflow run
// in the background.
func (s *Server) handleSubmitJob(c echo.Context) error {
	var req SubmitJobRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid job submission", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Location == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "location field is required")
	}
	if req.MediaType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "media_type field is required")
	}

	jobID := uuid.NewString()
	initial := state.New(state.DocumentRef{Location: req.Location, MediaType: req.MediaType}, req.Hints)

	s.setStatus(jobID, StatusRunning, "")
	go s.runJob(jobID, initial)

	return c.JSON(http.StatusAccepted, SubmitJobResponse{JobID: jobID, Status: StatusRunning})
}

// handleGetJob reports a job's status and its last checkpointed state.
func (s *Server) handleGetJob(c echo.Context) error {
	jobID := c.Param("id")

	ws, err := s.store.Load(c.Request().Context(), jobID)
	tracked, known := s.getStatus(jobID)

	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			// A just-submitted job may not have checkpointed yet.
			if known {
				return c.JSON(http.StatusOK, JobStatusResponse{JobID: jobID, Status: tracked.status, Error: tracked.err})
			}
			return echo.NewHTTPError(http.StatusNotFound, "unknown job")
		}
		s.logger.Error("checkpoint load failed", zap.String("job_id", jobID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "checkpoint load failed")
	}

	resp := JobStatusResponse{JobID: jobID, Status: deriveStatus(ws), State: ws}
	if known {
		resp.Status = tracked.status
		resp.Error = tracked.err
	}
	return c.JSON(http.StatusOK, resp)
}

// handleRetryJob resumes an unfinished job from its checkpoint. Satisfied
// steps are not redone.
func (s *Server) handleRetryJob(c echo.Context) error {
	jobID := c.Param("id")

	if tracked, known := s.getStatus(jobID); known && tracked.status == StatusRunning {
		return echo.NewHTTPError(http.StatusConflict, "job is already running")
	}
	if _, err := s.store.Load(c.Request().Context(), jobID); err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown job")
		}
		s.logger.Error("checkpoint load failed", zap.String("job_id", jobID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "checkpoint load failed")
	}

	s.setStatus(jobID, StatusRunning, "")
	go s.runJob(jobID, nil)

	return c.JSON(http.StatusAccepted, SubmitJobResponse{JobID: jobID, Status: StatusRunning})
}

// runJob drives one workflow pass outside the request lifecycle.
func (s *Server) runJob(jobID string, initial *state.WorkflowState) {
	_, err := s.runner.Run(context.Background(), jobID, initial)
	if err != nil {
		s.logger.Error("job run failed", zap.String("job_id", jobID), zap.Error(err))
		s.setStatus(jobID, StatusFailed, err.Error())
		return
	}
	s.setStatus(jobID, StatusComplete, "")
}

func (s *Server) setStatus(jobID, status, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = &jobStatus{status: status, err: errMsg}
}

func (s *Server) getStatus(jobID string) (jobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.jobs[jobID]
	if !ok {
		return jobStatus{}, false
	}
	return *st, true
}

// deriveStatus classifies a checkpointed job with no in-memory record,
// which happens after a daemon restart.
func deriveStatus(ws *state.WorkflowState) string {
	if ws.FinalRecord != nil {
		return StatusComplete
	}
	return StatusIncomplete
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
