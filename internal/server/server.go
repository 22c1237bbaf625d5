package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/aero"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/config"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/logging"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/metrics"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/record"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/study"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/trim"
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

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Job kinds.
const (
	KindTrim  = "trim"
	KindSweep = "sweep"
)

// StudyRequest starts a job. With TargetCL set it is a single trim at that
// CL, otherwise a sweep over CL.
type StudyRequest struct {
	study.Config
	TargetCL     *float64  `json:"target_cl,omitempty"`
	InitialGuess []float64 `json:"initial_guess,omitempty"`
}

// StudyState represents the state of a study job.
// The state is guarded by the server's jobs lock.
type StudyState struct {
	ID          string
	Kind        string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	Completed   int
	Total       int
	Records     []*record.Record
	Err         string
	CancelFunc  context.CancelFunc
	LastUpdated time.Time
}

// Server implements the HTTP and JSON-RPC server for trim studies.
// It manages study jobs and provides endpoints to start, monitor, and cancel them.
type Server struct {
	cfg       *config.Config
	logger    Logger
	minimizer optimization.Minimizer
	factory   aero.Factory
	metrics   *metrics.Collector
	store     *record.Store
	writer    *record.Writer

	// Limits running jobs to the worker count
	slots chan struct{}
	wg    sync.WaitGroup

	// Study state management
	studies   map[string]*StudyState
	studiesMu sync.RWMutex // Protects the studies map
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records job and run statistics in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithStore saves every finished run in st under its job id.
func WithStore(st *record.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithWriter writes result files of every job under the writer's directory.
func WithWriter(w *record.Writer) Option {
	return func(s *Server) { s.writer = w }
}

// WithFactory sets the solver factory.
func WithFactory(f aero.Factory) Option {
	return func(s *Server) { s.factory = f }
}

// WithMinimizer overrides the minimizer selected by the configuration.
func WithMinimizer(m optimization.Minimizer) Option {
	return func(s *Server) { s.minimizer = m }
}

// NewServer creates a new server instance with the given config and logger.
func NewServer(cfg *config.Config, logger Logger, opts ...Option) (*Server, error) {
	workers := cfg.Optimization.WorkerCount
	if workers < 1 {
		workers = 1
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		factory: aero.DefaultFactory,
		slots:   make(chan struct{}, workers),
		studies: make(map[string]*StudyState),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.minimizer == nil {
		m, err := trim.NewMinimizer(cfg.OptimizerConfig())
		if err != nil {
			return nil, err
		}
		s.minimizer = m
	}
	return s, nil
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/trim", s.handleTrim)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/study/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      interface{}       `json:"id"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", request.ID)
		return
	}
	if len(request.Params) == 0 && request.Method != "" {
		s.respondWithError(w, -32602, "Invalid params", request.ID)
		return
	}

	// Route to appropriate handler
	var result interface{}
	var err error

	switch request.Method {
	case "study.start":
		var req StudyRequest
		if req, err = decodeStudyRequest(request.Params[0]); err == nil {
			result, err = s.startStudy(req)
		}
	case "study.status":
		var id string
		if id, err = studyID(request.Params[0]); err == nil {
			result, err = s.studyStatus(id)
		}
	case "study.cancel":
		var id string
		if id, err = studyID(request.Params[0]); err == nil {
			err = s.cancelStudy(id)
			result = map[string]string{"status": "cancellation requested"}
		}
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), request.ID)
		return
	}

	// Send successful response
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func decodeStudyRequest(raw []byte) (StudyRequest, error) {
	req := StudyRequest{Config: study.DefaultConfig()}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return StudyRequest{}, fmt.Errorf("invalid study request: %w", err)
	}
	return req, nil
}

func studyID(raw []byte) (string, error) {
	var p struct {
		StudyID string `json:"study_id"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("invalid parameter format, expected object")
	}
	if p.StudyID == "" {
		return "", fmt.Errorf("study_id is required")
	}
	return p.StudyID, nil
}

// startStudy validates req, loads its scene and starts the job.
// Returns: {"study_id": "...", "status": "pending"}
func (s *Server) startStudy(req StudyRequest) (map[string]interface{}, error) {
	if req.Scene == "" {
		return nil, fmt.Errorf("scene is required")
	}

	kind, total := KindSweep, 0
	var opts trim.Options
	if req.TargetCL != nil {
		kind, total = KindTrim, 1
		opts = s.tune(req.Options(*req.TargetCL, req.InitialGuess))
		if _, err := opts.WithDefaults().Validate(); err != nil {
			return nil, err
		}
	} else {
		if err := req.Validate(); err != nil {
			return nil, err
		}
		cls, _ := req.CL.Values()
		total = len(cls)
		if req.DownPass {
			total += len(cls) - 1
		}
	}

	setup, err := trim.LoadSetup(req.Scene, req.Aircraft)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	state := &StudyState{
		ID:          id,
		Kind:        kind,
		Status:      StatusPending,
		StartTime:   now,
		Total:       total,
		CancelFunc:  cancel,
		LastUpdated: now,
	}

	s.studiesMu.Lock()
	s.studies[id] = state
	s.studiesMu.Unlock()

	s.logger.Info("Study accepted", map[string]interface{}{
		"study_id": id,
		"kind":     kind,
		"scene":    req.Scene,
		"aircraft": req.Aircraft,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runStudy(ctx, state, setup, req, opts)
	}()

	return map[string]interface{}{
		"study_id": id,
		"status":   StatusPending,
	}, nil
}

// studyStatus returns the current status and results of a study job.
func (s *Server) studyStatus(id string) (map[string]interface{}, error) {
	s.studiesMu.RLock()
	defer s.studiesMu.RUnlock()

	state, exists := s.studies[id]
	if !exists {
		return nil, fmt.Errorf("study not found")
	}

	progress := 0.0
	if state.Total > 0 {
		progress = float64(state.Completed) / float64(state.Total)
	}
	response := map[string]interface{}{
		"study_id":    state.ID,
		"kind":        state.Kind,
		"status":      state.Status,
		"progress":    progress,
		"completed":   state.Completed,
		"total":       state.Total,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}

	// Add end time if available
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.Err != "" {
		response["error"] = state.Err
	}
	if len(state.Records) > 0 {
		response["results"] = append([]*record.Record(nil), state.Records...)
	}

	return response, nil
}

// cancelStudy cancels a pending or running study job.
func (s *Server) cancelStudy(id string) error {
	s.studiesMu.Lock()
	defer s.studiesMu.Unlock()

	state, exists := s.studies[id]
	if !exists {
		return fmt.Errorf("study not found")
	}

	switch state.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		// Already in a terminal state
		return fmt.Errorf("cannot cancel study with status: %s", state.Status)
	}

	// Cancel the study
	if state.CancelFunc != nil {
		state.CancelFunc()
	}

	// Update state
	state.Status = StatusCancelled
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	// Log the cancellation
	s.logger.Info("Study cancelled", map[string]interface{}{
		"study_id": id,
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

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// runStudy executes a study job in its own goroutine. It waits for a worker
// slot first, so a job cancelled while pending never starts.
func (s *Server) runStudy(ctx context.Context, state *StudyState, setup *trim.Setup, req StudyRequest, opts trim.Options) {
	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		return
	}

	s.update(state, func() {
		if state.Status == StatusPending {
			state.Status = StatusRunning
		}
	})
	if s.metrics != nil {
		s.metrics.JobStarted()
	}

	logger := s.logger.WithFields(map[string]interface{}{"study_id": state.ID})
	driverOpts := []trim.Option{trim.WithFactory(s.factory), trim.WithLogger(logger)}
	if s.metrics != nil {
		driverOpts = append(driverOpts, trim.WithObserver(s.metrics))
	}
	driver := trim.NewDriver(s.minimizer, driverOpts...)

	var records, up []*record.Record
	var err error
	if state.Kind == KindTrim {
		var sol *trim.Solution
		if sol, err = driver.Run(ctx, setup, opts); err == nil {
			rec := record.New(setup, opts, sol, time.Now())
			records = []*record.Record{rec}
			s.update(state, func() {
				state.Completed = 1
				state.Records = records
			})
		}
	} else {
		records, up, err = s.sweep(ctx, state, driver, setup, req)
	}

	if err == nil {
		err = s.persist(state.ID, state.Kind, records, up)
	}

	status := StatusCompleted
	s.update(state, func() {
		switch {
		case state.Status == StatusCancelled:
			status = StatusCancelled
		case err != nil:
			status = StatusFailed
			state.Status = StatusFailed
			state.Err = err.Error()
		default:
			state.Status = StatusCompleted
			state.Records = records
		}
		if state.EndTime == nil {
			now := time.Now()
			state.EndTime = &now
		}
	})
	if s.metrics != nil {
		s.metrics.JobFinished(status)
	}

	if status == StatusFailed {
		logger.Error("Study failed", map[string]interface{}{"error": err.Error()})
	} else {
		logger.Info("Study finished", map[string]interface{}{"status": status, "runs": len(records)})
	}
}

// sweep returns the kept records and the up-pass records.
func (s *Server) sweep(ctx context.Context, state *StudyState, driver *trim.Driver, setup *trim.Setup, req StudyRequest) ([]*record.Record, []*record.Record, error) {
	sweeper := study.NewSweeper(driver,
		study.WithBaseOptions(s.cfg.TrimOptions()),
		study.WithLogger(s.logger.WithFields(map[string]interface{}{"study_id": state.ID})),
		study.WithProgress(func(string, int, study.Point) {
			s.update(state, func() { state.Completed++ })
		}),
	)

	res, err := sweeper.Sweep(ctx, setup, req.Config)
	if err != nil {
		return nil, nil, err
	}
	return sweepRecords(setup, res.Points), sweepRecords(setup, res.Up), nil
}

func sweepRecords(setup *trim.Setup, points []study.Point) []*record.Record {
	recs := make([]*record.Record, len(points))
	for i, p := range points {
		recs[i] = record.New(setup, p.Options, p.Solution, time.Now())
		recs[i].Changed = p.Changed
	}
	return recs
}

// persist saves records in the store and writes their files when configured.
// A sweep also gets its tables.
func (s *Server) persist(id string, kind string, records, up []*record.Record) error {
	if s.store != nil {
		for _, rec := range records {
			if err := s.store.SaveRun(context.Background(), id, rec); err != nil {
				return err
			}
		}
	}
	if s.writer == nil || len(records) == 0 {
		return nil
	}

	w := record.NewWriter(filepath.Join(s.writer.Dir(), id), s.cfg.Results.DumpForces)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return err
		}
	}
	if kind == KindSweep {
		return w.WriteSweep(records, up)
	}
	return nil
}

func (s *Server) tune(o trim.Options) trim.Options {
	base := s.cfg.TrimOptions()
	o.DragScale = base.DragScale
	o.RefineTolerance = base.RefineTolerance
	o.MaxRefinements = base.MaxRefinements
	o.AbsLiftConstraint = base.AbsLiftConstraint
	return o
}

func (s *Server) update(state *StudyState, fn func()) {
	s.studiesMu.Lock()
	defer s.studiesMu.Unlock()
	fn()
	state.LastUpdated = time.Now()
}

// Close cancels all running studies and waits for them to return.
func (s *Server) Close() error {
	s.studiesMu.Lock()
	for _, st := range s.studies {
		if st.CancelFunc != nil {
			st.CancelFunc()
		}
	}
	s.studiesMu.Unlock()

	s.wg.Wait()
	return nil
}

// handleTrim handles the HTTP POST /trim endpoint for starting a new study
func (s *Server) handleTrim(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}

	req, err := decodeStudyRequest(buf.Bytes())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}

	result, err := s.startStudy(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// handleStatus handles the HTTP GET /status/{id} endpoint for checking study status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.studyStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCancel handles the HTTP DELETE /study/{id} endpoint for cancelling a study
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.studiesMu.RLock()
	_, exists := s.studies[id]
	s.studiesMu.RUnlock()
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "study not found"})
		return
	}

	if err := s.cancelStudy(id); err != nil {
		writeJSON(w, http.StatusConflict, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
