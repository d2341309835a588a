// Package server exposes constrained optimization jobs over HTTP and
// JSON-RPC 2.0.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/feasopt/feasopt/internal/config"
	"github.com/feasopt/feasopt/internal/logging"
	"github.com/feasopt/feasopt/internal/optimization"
	"github.com/feasopt/feasopt/internal/optimization/driver"
	"github.com/feasopt/feasopt/internal/optimization/region"
)

// Job statuses reported by the status endpoints.
const (
	statusPending   = "pending"
	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

// JobRequest is the body of an optimization start request. Constraints are
// structured expressions, not code; the objective is a registry name.
type JobRequest struct {
	Objective   string                    `json:"objective"`
	Variables   []optimization.Variable   `json:"variables"`
	Constraints []optimization.Constraint `json:"constraints,omitempty"`

	InitialDesignSize   int                       `json:"initial_design_size,omitempty"`
	InitialDesignMethod optimization.DesignMethod `json:"initial_design_method,omitempty"`
	MaxIterations       int                       `json:"max_iterations,omitempty"`
	MaxDurationSeconds  float64                   `json:"max_duration_seconds,omitempty"`
	MinDistanceTol      float64                   `json:"min_distance_tolerance,omitempty"`
	Seed                int64                     `json:"seed,omitempty"`
	Xi                  float64                   `json:"xi,omitempty"`
}

// jobState tracks one optimization job. Guarded by the server's mutex.
type jobState struct {
	ID          string
	Status      string
	Error       string
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Loop        *driver.Loop
	Cancel      context.CancelFunc
	Result      *optimization.Result
}

// Server manages optimization jobs and serves the HTTP and JSON-RPC APIs.
type Server struct {
	cfg    *config.Config
	logger *logging.Logger

	mu   sync.RWMutex
	jobs map[string]*jobState
}

// NewServer creates a server instance.
func NewServer(cfg *config.Config, logger *logging.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]*jobState),
	}
}

// RegisterRoutes mounts the API on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
		r.Get("/objectives", s.handleObjectives)
	})

	r.Post("/rpc", s.handleJSONRPC)
}

// Close cancels all running jobs.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.Cancel != nil {
			job.Cancel()
		}
	}
	return nil
}

// startJob validates a request, builds the loop, and launches it in a
// goroutine. It returns the job ID.
func (s *Server) startJob(req *JobRequest) (string, error) {
	obj, ok := LookupObjective(req.Objective)
	if !ok {
		return "", fmt.Errorf("unknown objective %q", req.Objective)
	}
	if obj.Dims > 0 && len(req.Variables) != obj.Dims {
		return "", fmt.Errorf("objective %q requires %d variables, got %d",
			obj.Name, obj.Dims, len(req.Variables))
	}

	reg, err := region.New(req.Variables, req.Constraints,
		region.WithMaxAttempts(s.cfg.Optimization.SampleAttempts))
	if err != nil {
		return "", err
	}

	initialSize := req.InitialDesignSize
	if initialSize == 0 {
		initialSize = s.cfg.Optimization.InitialDesignSize
	}
	maxIterations := req.MaxIterations
	if maxIterations == 0 {
		maxIterations = s.cfg.Optimization.MaxIterations
	}
	maxDuration := s.cfg.Optimization.MaxDuration
	if req.MaxDurationSeconds > 0 {
		maxDuration = time.Duration(req.MaxDurationSeconds * float64(time.Second))
	}

	objective := func(x []float64) (float64, error) {
		value, err := obj.Func(x)
		if err == nil {
			objectiveEvaluations.Inc()
		}
		return value, err
	}

	loop, err := driver.New(driver.Config{
		Objective:           objective,
		Region:              reg,
		InitialDesignSize:   initialSize,
		InitialDesignMethod: req.InitialDesignMethod,
		MaxIterations:       maxIterations,
		MaxDuration:         maxDuration,
		MinDistanceTol:      req.MinDistanceTol,
		Seed:                req.Seed,
		Xi:                  req.Xi,
		AcqSeeds:            s.cfg.Optimization.AcqSeeds,
		Logger:              logging.NewZapLogger(s.logger),
	})
	if err != nil {
		return "", err
	}

	id := fmt.Sprintf("opt_%d", time.Now().UnixNano())
	ctx, cancel := context.WithCancel(context.Background())

	now := time.Now()
	job := &jobState{
		ID:          id,
		Status:      statusPending,
		StartTime:   now,
		LastUpdated: now,
		Loop:        loop,
		Cancel:      cancel,
	}

	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	jobsStarted.Inc()
	go s.runJob(ctx, job)

	return id, nil
}

// runJob executes the optimization loop and records its terminal state.
func (s *Server) runJob(ctx context.Context, job *jobState) {
	s.mu.Lock()
	job.Status = statusRunning
	job.LastUpdated = time.Now()
	s.mu.Unlock()

	result, err := job.Loop.Optimize(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now

	switch {
	case job.Status == statusCancelled:
		// Cancellation already recorded; the loop error is the context error.
	case err != nil:
		job.Status = statusFailed
		job.Error = err.Error()
		s.logger.Error("optimization job failed", map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	default:
		job.Status = statusCompleted
		job.Result = result
		s.logger.Info("optimization job completed", map[string]interface{}{
			"job_id":     job.ID,
			"state":      string(result.State),
			"iterations": result.Iterations,
			"best_value": result.BestSolution.Value,
		})
	}
	jobsFinished.WithLabelValues(job.Status).Inc()
}

// statusResponse builds the status payload for a job. Callers hold at
// least a read lock.
func (s *Server) statusResponse(job *jobState) map[string]interface{} {
	resp := map[string]interface{}{
		"job_id":      job.ID,
		"status":      job.Status,
		"start_time":  job.StartTime.Format(time.RFC3339),
		"last_update": job.LastUpdated.Format(time.RFC3339),
	}
	if job.EndTime != nil {
		resp["end_time"] = job.EndTime.Format(time.RFC3339)
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}

	if best := job.Loop.Best(); best != nil {
		resp["best_solution"] = best
	}
	if job.Result != nil {
		resp["terminal_state"] = string(job.Result.State)
		resp["iterations"] = job.Result.Iterations
	}

	history := job.Loop.History()
	if len(history) > 0 {
		entries := make([]map[string]interface{}, len(history))
		for i, eval := range history {
			entries[i] = map[string]interface{}{
				"iteration":  eval.Iteration,
				"parameters": eval.Solution.Parameters,
				"value":      eval.Solution.Value,
			}
		}
		resp["history"] = entries
	}
	return resp
}

// cancelJob transitions a job to cancelled if it is still running.
func (s *Server) cancelJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("optimization not found")
	}
	switch job.Status {
	case statusCompleted, statusFailed, statusCancelled:
		return fmt.Errorf("cannot cancel optimization with status: %s", job.Status)
	}

	if job.Cancel != nil {
		job.Cancel()
	}
	now := time.Now()
	job.Status = statusCancelled
	job.EndTime = &now
	job.LastUpdated = now

	s.logger.Info("optimization cancelled", map[string]interface{}{
		"job_id": id,
	})
	return nil
}

// handleOptimize handles POST /api/v1/optimize.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}

	id, err := s.startJob(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"optimization_id": id,
		"status":          statusPending,
	})
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "missing optimization ID"})
		return
	}

	s.mu.RLock()
	job, ok := s.jobs[id]
	var resp map[string]interface{}
	if ok {
		resp = s.statusResponse(job)
	}
	s.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "optimization not found"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCancel handles DELETE /api/v1/optimization/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "missing optimization ID"})
		return
	}

	if err := s.cancelJob(id); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

// handleObjectives handles GET /api/v1/objectives.
func (s *Server) handleObjectives(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"objectives": ObjectiveNames()})
}

// jsonRPCRequest is a JSON-RPC 2.0 request envelope. Params carries a
// single object parameter.
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests on /rpc.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}
	if req.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", req.ID)
		return
	}

	var result interface{}
	var err error

	switch req.Method {
	case "optimization.start":
		var jobReq JobRequest
		if err = json.Unmarshal(req.Params, &jobReq); err != nil {
			s.respondWithError(w, -32602, "Invalid params", req.ID)
			return
		}
		var id string
		if id, err = s.startJob(&jobReq); err == nil {
			result = map[string]interface{}{"optimization_id": id, "status": statusPending}
		}
	case "optimization.status":
		var params struct {
			ID string `json:"optimization_id"`
		}
		if err = json.Unmarshal(req.Params, &params); err != nil {
			s.respondWithError(w, -32602, "Invalid params", req.ID)
			return
		}
		s.mu.RLock()
		job, ok := s.jobs[params.ID]
		if ok {
			result = s.statusResponse(job)
		}
		s.mu.RUnlock()
		if !ok {
			err = fmt.Errorf("optimization not found")
		}
	case "optimization.cancel":
		var params struct {
			ID string `json:"optimization_id"`
		}
		if err = json.Unmarshal(req.Params, &params); err != nil {
			s.respondWithError(w, -32602, "Invalid params", req.ID)
			return
		}
		if err = s.cancelJob(params.ID); err == nil {
			result = map[string]string{"status": "cancellation requested"}
		}
	default:
		s.respondWithError(w, -32601, "Method not found", req.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), req.ID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  result,
	})
}

// respondWithError sends a JSON-RPC 2.0 error response.
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("request error", map[string]interface{}{
		"code":    code,
		"message": message,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
