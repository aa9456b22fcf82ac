package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lawnchairsociety/wfcgen/internal/sample"
	"github.com/lawnchairsociety/wfcgen/internal/store"
	"github.com/lawnchairsociety/wfcgen/internal/wfc"
)

// GenerateRequest is the body of POST /v1/generate and the first message of a stream.
type GenerateRequest struct {
	Name        string   `json:"name"`
	Sample      []string `json:"sample" binding:"required,min=1,dive,required"`
	Rows        int      `json:"rows" binding:"required,gte=1,lte=4096"`
	Cols        int      `json:"cols" binding:"required,gte=1,lte=4096"`
	Seed        int64    `json:"seed"` // 0 picks a time-based seed
	Propagation string   `json:"propagation"`
	Collapse    string   `json:"collapse"`
	MaxSteps    int      `json:"max_steps" binding:"gte=0"`
	MaxAttempts int      `json:"max_attempts" binding:"gte=0,lte=100"`
	Seeds       []string `json:"seeds"` // "row,col,tile"
	Save        bool     `json:"save"`
}

// ConflictResponse describes a contradicted cell.
type ConflictResponse struct {
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	SourceRow int    `json:"source_row"`
	SourceCol int    `json:"source_col"`
	Tile      string `json:"tile,omitempty"`
	Dir       string `json:"dir"`
	Removed   string `json:"removed"`
}

// GenerateResponse is a generation result.
type GenerateResponse struct {
	ID         string             `json:"id,omitempty"`
	Rows       int                `json:"rows"`
	Cols       int                `json:"cols"`
	Seed       int64              `json:"seed"`
	Attempts   int                `json:"attempts"`
	Steps      int                `json:"steps"`
	Success    bool               `json:"success"`
	DurationMS int64              `json:"duration_ms"`
	Tiles      []string           `json:"tiles"`
	Conflicts  []ConflictResponse `json:"conflicts,omitempty"`
}

// RunResponse is a stored run.
type RunResponse struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	SampleName  string    `json:"sample_name,omitempty"`
	SampleHash  string    `json:"sample_hash"`
	Rows        int       `json:"rows"`
	Cols        int       `json:"cols"`
	Seed        int64     `json:"seed"`
	Propagation string    `json:"propagation"`
	Collapse    string    `json:"collapse"`
	Attempts    int       `json:"attempts"`
	Steps       int       `json:"steps"`
	Success     bool      `json:"success"`
	Conflicts   int       `json:"conflicts"`
	DurationMS  int64     `json:"duration_ms"`
	Tiles       []string  `json:"tiles,omitempty"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Result *GenerateResponse `json:"result,omitempty"`
}

// ListRunsQuery holds the query parameters of GET /v1/runs.
type ListRunsQuery struct {
	SampleHash string `form:"sample_hash"`
	Limit      int    `form:"limit" binding:"gte=0,lte=500"`
	Offset     int    `form:"offset" binding:"gte=0"`
}

// generation is a validated request ready to run.
type generation struct {
	sample *sample.Sample
	model  *wfc.Model
	config *wfc.Config
}

// prepare validates a request against the server limits and builds the model and config.
func (s *Server) prepare(req *GenerateRequest) (*generation, error) {
	if limit := s.cfg.Server.MaxCells; req.Cols > 0 && req.Rows > limit/req.Cols {
		return nil, &requestError{code: "GRID_TOO_LARGE", msg: "grid exceeds the configured cell limit"}
	}

	smp, err := sample.ParseText(strings.Join(req.Sample, "\n"))
	if err != nil {
		return nil, err
	}
	smp.Name = req.Name

	model, err := smp.Model()
	if err != nil {
		return nil, err
	}

	gen := s.cfg.Generate
	gen.Rows, gen.Cols, gen.Seed = req.Rows, req.Cols, req.Seed
	if req.Propagation != "" {
		gen.Propagation = req.Propagation
	}
	if req.Collapse != "" {
		gen.Collapse = req.Collapse
	}
	if req.MaxSteps > 0 {
		gen.MaxSteps = req.MaxSteps
	}
	if req.MaxAttempts > 0 {
		gen.MaxAttempts = req.MaxAttempts
	}

	cfg, err := gen.ToWFC()
	if err != nil {
		return nil, &requestError{code: "INVALID_OPTION", msg: err.Error()}
	}
	if cfg.SeedTiles, err = sample.ParseSeeds(req.Seeds); err != nil {
		return nil, &requestError{code: "INVALID_SEED", msg: err.Error()}
	}

	return &generation{sample: smp, model: model, config: cfg}, nil
}

// requestError is a 400 raised before generation starts.
type requestError struct {
	code, msg string
}

func (e *requestError) Error() string { return e.msg }

// classify maps an error to an HTTP status and error code.
func classify(err error) (int, string) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.code
	case errors.Is(err, wfc.ErrEmptySample), errors.Is(err, wfc.ErrRaggedSample):
		return http.StatusBadRequest, "INVALID_SAMPLE"
	case errors.Is(err, wfc.ErrInvalidDimensions):
		return http.StatusBadRequest, "INVALID_DIMENSIONS"
	case errors.Is(err, wfc.ErrInvalidSeed), errors.Is(err, wfc.ErrUnknownTile):
		return http.StatusBadRequest, "INVALID_SEED"
	case errors.Is(err, wfc.ErrNoSolution):
		return http.StatusUnprocessableEntity, "NO_SOLUTION"
	case errors.Is(err, wfc.ErrContradiction):
		return http.StatusUnprocessableEntity, "CONTRADICTION"
	case errors.Is(err, wfc.ErrTimeout):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (s *Server) handleGenerate(c *gin.Context) {
	logger := s.logger.With("handler", "generate", "client_ip", getRealIP(c.Request))

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	if req.Save && s.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "run storage is disabled", Code: "STORE_DISABLED"})
		return
	}

	gen, err := s.prepare(&req)
	if err != nil {
		status, code := classify(err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	g := wfc.NewGenerator(gen.model, gen.config)
	g.SetLogger(logger)
	result, genErr := g.Generate(c.Request.Context())

	var resp *GenerateResponse
	if result != nil {
		resp = toGenerateResponse(result)
		if req.Save {
			run := store.NewRun(gen.sample.Name, gen.sample.Rows, gen.config, result)
			if err := s.store.SaveRun(c.Request.Context(), run); err != nil {
				logger.Error("failed to save run", "error", err)
				c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_FAILED", Result: resp})
				return
			}
			resp.ID = run.ID
		}
	}

	if genErr != nil {
		status, code := classify(genErr)
		logger.Info("generation failed", "code", code, "error", genErr)
		c.JSON(status, ErrorResponse{Error: genErr.Error(), Code: code, Result: resp})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "run storage is disabled", Code: "STORE_DISABLED"})
		return
	}

	var q ListRunsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	runs, err := s.store.ListRuns(c.Request.Context(), store.ListOptions{
		SampleHash: q.SampleHash,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_FAILED"})
		return
	}

	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		r := toRunResponse(run)
		r.Tiles = nil // listings omit grids
		out = append(out, r)
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "run storage is disabled", Code: "STORE_DISABLED"})
		return
	}

	run, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, code := classify(err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, toRunResponse(run))
}

func toGenerateResponse(res *wfc.Result) *GenerateResponse {
	resp := &GenerateResponse{
		Rows:       res.Rows,
		Cols:       res.Cols,
		Seed:       res.Seed,
		Attempts:   res.Attempts,
		Steps:      res.Steps,
		Success:    res.Success(),
		DurationMS: res.Duration.Milliseconds(),
		Tiles:      make([]string, len(res.Tiles)),
	}
	for i, row := range res.Tiles {
		resp.Tiles[i] = string(row)
	}
	for _, cf := range res.Conflicts {
		cr := ConflictResponse{
			Row:       cf.Cell.Row,
			Col:       cf.Cell.Col,
			SourceRow: cf.Source.Row,
			SourceCol: cf.Source.Col,
			Dir:       cf.Dir.String(),
		}
		if cf.SourceCollapsed {
			cr.Tile = cf.Tile.String()
		}
		var removed strings.Builder
		for _, t := range cf.Removed {
			removed.WriteRune(rune(t))
		}
		cr.Removed = removed.String()
		resp.Conflicts = append(resp.Conflicts, cr)
	}
	return resp
}

func toRunResponse(run *store.Run) RunResponse {
	return RunResponse{
		ID:          run.ID,
		CreatedAt:   run.CreatedAt,
		SampleName:  run.SampleName,
		SampleHash:  run.SampleHash,
		Rows:        run.Rows,
		Cols:        run.Cols,
		Seed:        run.Seed,
		Propagation: run.Propagation,
		Collapse:    run.Collapse,
		Attempts:    run.Attempts,
		Steps:       run.Steps,
		Success:     run.Success,
		Conflicts:   run.Conflicts,
		DurationMS:  run.Duration.Milliseconds(),
		Tiles:       run.Tiles,
	}
}
