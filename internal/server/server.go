package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/copyleftdev/crfsearch/internal/config"
	"github.com/copyleftdev/crfsearch/internal/explore"
	"github.com/copyleftdev/crfsearch/internal/logging"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Request describes one exploration job.
type Request struct {
	Input        string  `json:"input"`
	Strategy     string  `json:"strategy"`
	InitialParam float64 `json:"initial_param,omitempty"`
	MinParam     float64 `json:"min_param,omitempty"`
	MaxParam     float64 `json:"max_param,omitempty"`
	Exhaustive   bool    `json:"exhaustive,omitempty"`
}

// Engine runs one exploration request end to end. The wiring of
// encoders, meters and the two-stage orchestration happens in main.
type Engine interface {
	Run(ctx context.Context, req Request) (*explore.Result, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, req Request) (*explore.Result, error)

func (f EngineFunc) Run(ctx context.Context, req Request) (*explore.Result, error) {
	return f(ctx, req)
}

// ExplorationState tracks one job. The state is thread-safe and can be
// accessed concurrently through the server's lock.
type ExplorationState struct {
	ID          string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	Request     Request
	Result      *explore.Result
	Err         string
	CancelFunc  context.CancelFunc
	LastUpdated time.Time
}

// Server exposes exploration jobs over REST and JSON-RPC 2.0.
type Server struct {
	cfg    *config.Config
	logger Logger
	engine Engine

	explorations   map[string]*ExplorationState
	explorationsMu sync.RWMutex // Protects the explorations map
}

// NewServer creates a new server instance with the given config,
// logger and engine.
func NewServer(cfg *config.Config, logger Logger, engine Engine) *Server {
	return &Server{
		cfg:          cfg,
		logger:       logger,
		engine:       engine,
		explorations: make(map[string]*ExplorationState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/explore", s.handleExplore)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/exploration/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string        `json:"jsonrpc"`
		ID      interface{}   `json:"id"`
		Method  string        `json:"method"`
		Params  []interface{} `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "exploration.start":
		result, err = s.handleExplorationStart(request.Params)
	case "exploration.status":
		result, err = s.handleExplorationStatus(request.Params)
	case "exploration.cancel":
		err = s.handleExplorationCancel(request.Params)
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, "Server error", request.ID)
		return
	}

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleExplorationStart handles the exploration.start JSON-RPC method.
// Expected parameters: {"input": "/path/to/file.mkv", "strategy": "compress_only"}
// Returns: {"exploration_id": "...", "status": "pending"}
func (s *Server) handleExplorationStart(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}

	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid parameter format, expected object")
	}

	req := Request{}
	if v, ok := paramMap["input"].(string); ok {
		req.Input = v
	}
	if v, ok := paramMap["strategy"].(string); ok {
		req.Strategy = v
	}
	if v, ok := paramMap["initial_param"].(float64); ok {
		req.InitialParam = v
	}
	if v, ok := paramMap["min_param"].(float64); ok {
		req.MinParam = v
	}
	if v, ok := paramMap["max_param"].(float64); ok {
		req.MaxParam = v
	}
	if v, ok := paramMap["exhaustive"].(bool); ok {
		req.Exhaustive = v
	}

	return s.start(req)
}

func (s *Server) start(req Request) (interface{}, error) {
	if req.Input == "" {
		return nil, fmt.Errorf("input is required")
	}
	if req.Strategy == "" {
		return nil, fmt.Errorf("strategy is required")
	}
	if _, err := explore.ParseStrategy(req.Strategy); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	state := &ExplorationState{
		ID:          id,
		Status:      "pending",
		StartTime:   time.Now(),
		Request:     req,
		CancelFunc:  cancel,
		LastUpdated: time.Now(),
	}

	s.explorationsMu.Lock()
	s.explorations[id] = state
	s.explorationsMu.Unlock()

	go s.runExploration(ctx, id, req, state)

	return map[string]interface{}{
		"exploration_id": id,
		"status":         "pending",
	}, nil
}

// handleExplorationStatus handles the exploration.status JSON-RPC method.
func (s *Server) handleExplorationStatus(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}

	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid parameter format, expected object")
	}

	explorationID, ok := paramMap["exploration_id"].(string)
	if !ok || explorationID == "" {
		return nil, fmt.Errorf("exploration_id is required")
	}

	s.explorationsMu.RLock()
	defer s.explorationsMu.RUnlock()

	state, exists := s.explorations[explorationID]
	if !exists {
		return nil, fmt.Errorf("exploration not found")
	}

	response := map[string]interface{}{
		"status":      state.Status,
		"strategy":    state.Request.Strategy,
		"input":       state.Request.Input,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}

	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.Err != "" {
		response["error"] = state.Err
	}

	if res := state.Result; res != nil {
		response["result"] = map[string]interface{}{
			"optimal_param":   res.OptimalParam,
			"output_size":     res.OutputSize,
			"size_change_pct": res.SizeChangePct,
			"ssim":            res.SSIM,
			"iterations":      res.Iterations,
			"pass":            res.Pass,
			"fail_reason":     res.FailReason,
			"confidence":      res.Confidence,
		}
	}

	return response, nil
}

// handleExplorationCancel handles the exploration.cancel JSON-RPC method.
func (s *Server) handleExplorationCancel(params []interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing required parameters")
	}

	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid parameter format, expected object")
	}

	explorationID, ok := paramMap["exploration_id"].(string)
	if !ok || explorationID == "" {
		return fmt.Errorf("exploration_id is required")
	}

	return s.cancel(explorationID)
}

func (s *Server) cancel(explorationID string) error {
	s.explorationsMu.Lock()
	defer s.explorationsMu.Unlock()

	state, exists := s.explorations[explorationID]
	if !exists {
		return fmt.Errorf("exploration not found")
	}

	switch state.Status {
	case "completed", "failed", "cancelled":
		// Already in a terminal state
		return fmt.Errorf("cannot cancel exploration with status: %s", state.Status)
	}

	// Cancellation takes effect between probes; an in-flight encode is
	// never interrupted mid-way.
	if state.CancelFunc != nil {
		state.CancelFunc()
	}

	state.Status = "cancelled"
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("Exploration cancelled", map[string]interface{}{
		"exploration_id": explorationID,
	})

	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// runExploration executes one job in a goroutine.
func (s *Server) runExploration(ctx context.Context, id string, req Request, state *ExplorationState) {
	s.explorationsMu.Lock()
	state.Status = "running"
	state.LastUpdated = time.Now()
	s.explorationsMu.Unlock()

	result, err := s.engine.Run(ctx, req)

	s.explorationsMu.Lock()
	defer s.explorationsMu.Unlock()

	if state.Status == "cancelled" {
		return
	}

	if err != nil {
		s.logger.Error("Exploration failed", map[string]interface{}{
			"exploration_id": id,
			"error":          err.Error(),
		})
		state.Status = "failed"
		state.Err = err.Error()
	} else {
		state.Status = "completed"
		state.Result = result
	}

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now
}

// Close cancels all running explorations.
func (s *Server) Close() error {
	s.explorationsMu.Lock()
	defer s.explorationsMu.Unlock()

	for _, st := range s.explorations {
		if st.CancelFunc != nil {
			st.CancelFunc()
		}
	}
	return nil
}

// handleExplore handles the HTTP POST /explore endpoint.
func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.start(req)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles the HTTP GET /status/:id endpoint.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	explorationID := chi.URLParam(r, "id")
	if explorationID == "" {
		http.Error(w, "Missing exploration ID", http.StatusBadRequest)
		return
	}

	result, err := s.handleExplorationStatus([]interface{}{map[string]interface{}{
		"exploration_id": explorationID,
	}})

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles the HTTP DELETE /exploration/:id endpoint.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	explorationID := chi.URLParam(r, "id")
	if explorationID == "" {
		http.Error(w, "Missing exploration ID", http.StatusBadRequest)
		return
	}

	err := s.cancel(explorationID)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "cancellation requested",
	})
}
