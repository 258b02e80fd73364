package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kurihiro0119/hitbatch/internal/aggregator"
	"github.com/kurihiro0119/hitbatch/internal/cost"
	"github.com/kurihiro0119/hitbatch/internal/domain"
	apperrors "github.com/kurihiro0119/hitbatch/internal/errors"
	"github.com/kurihiro0119/hitbatch/internal/qual"
)

// Handler handles API requests
type Handler struct {
	aggregator aggregator.Aggregator
	resolver   *qual.Resolver
	premium    []string
	logger     *zap.Logger
}

// NewHandler creates a new API handler.
// Cost estimates resolve system and premium names only; custom names need a
// marketplace client and are rejected.
func NewHandler(agg aggregator.Aggregator, catalog *qual.Catalog, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		aggregator: agg,
		resolver:   qual.NewResolver(catalog, nil),
		premium:    catalog.Names(),
		logger:     logger,
	}
}

// CompileRequest is the body of POST /api/v1/qualifications/compile
type CompileRequest struct {
	Formulae []string `json:"formulae"`
}

// CompileResult is the outcome of one formula line
type CompileResult struct {
	Formula     string                           `json:"formula"`
	Requirement *domain.QualificationRequirement `json:"requirement,omitempty"`
	Error       *ErrorBody                       `json:"error,omitempty"`
}

// CostRequest is the body of POST /api/v1/cost
type CostRequest struct {
	Environment    domain.Environment `json:"environment"`
	Reward         string             `json:"reward"`
	Assignments    int                `json:"assignments"`
	Batch          bool               `json:"batch"`
	Qualifications []string           `json:"qualifications"`
}

// CostEstimate is the response of POST /api/v1/cost
type CostEstimate struct {
	Environment  domain.Environment    `json:"environment"`
	Assignments  int                   `json:"assignments"`
	Batch        bool                  `json:"batch"`
	Cost         string                `json:"cost"`
	Requirements []ResolvedRequirement `json:"requirements"`
}

// ResolvedRequirement is a requirement with the type ID it resolved to
type ResolvedRequirement struct {
	domain.QualificationRequirement
	TypeID string `json:"QualificationTypeId"`
	Tier   string `json:"Tier"`
	Fee    string `json:"Fee,omitempty"`
}

// ErrorBody is the error payload of every failed request
type ErrorBody struct {
	Code    apperrors.ErrCode `json:"code"`
	Message string            `json:"message"`
}

// GetEnvironmentStatus returns the stored HIT set summary
// GET /api/v1/environments/:env/status
func (h *Handler) GetEnvironmentStatus(c *gin.Context) {
	env, ok := parseEnvironment(c, domain.Environment(c.Param("env")))
	if !ok {
		return
	}

	summary, err := h.aggregator.EnvironmentStatus(c.Request.Context(), env)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": summary,
	})
}

// CompileQualifications compiles formula lines independently
// POST /api/v1/qualifications/compile
func (h *Handler) CompileQualifications(c *gin.Context) {
	var req CompileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.NewBadRequestError("invalid request body: "+err.Error()))
		return
	}

	compiler := qual.NewCompiler(qual.WithLogger(h.logger), qual.WithKnownNames(h.premium...))
	results := make([]CompileResult, 0, len(req.Formulae))
	for _, line := range req.Formulae {
		result := CompileResult{Formula: line}
		compiled, err := compiler.Compile(line)
		if err != nil {
			body := errorBody(err)
			result.Error = &body
		} else {
			compiler.Learn(compiled.Name)
			result.Requirement = compiled
		}
		results = append(results, result)
	}

	c.JSON(http.StatusOK, gin.H{
		"data": results,
	})
}

// EstimateCost prices a task without creating anything
// POST /api/v1/cost
func (h *Handler) EstimateCost(c *gin.Context) {
	var req CostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.NewBadRequestError("invalid request body: "+err.Error()))
		return
	}
	if req.Environment == "" {
		req.Environment = domain.EnvironmentSandbox
	}
	env, ok := parseEnvironment(c, req.Environment)
	if !ok {
		return
	}
	if req.Assignments < 1 {
		h.respondError(c, apperrors.NewBadRequestError("assignments must be at least 1"))
		return
	}
	reward, err := decimal.NewFromString(req.Reward)
	if err != nil || !reward.IsPositive() {
		h.respondError(c, apperrors.NewBadRequestError("reward must be a positive amount"))
		return
	}

	compiler := qual.NewCompiler(qual.WithLogger(h.logger), qual.WithKnownNames(h.premium...))
	reqs := make([]domain.QualificationRequirement, 0, len(req.Qualifications))
	for _, line := range req.Qualifications {
		compiled, err := compiler.Compile(line)
		if err != nil {
			h.respondError(c, err)
			return
		}
		compiler.Learn(compiled.Name)
		reqs = append(reqs, *compiled)
	}

	resolved, err := h.resolver.ResolveAll(c.Request.Context(), env, reqs)
	if err != nil {
		h.respondError(c, err)
		return
	}

	estimate := CostEstimate{
		Environment:  env,
		Assignments:  req.Assignments,
		Batch:        req.Batch,
		Cost:         cost.Format(cost.Estimate(reward, req.Assignments, req.Batch, resolved)),
		Requirements: make([]ResolvedRequirement, 0, len(resolved)),
	}
	for _, r := range resolved {
		out := ResolvedRequirement{QualificationRequirement: r.QualificationRequirement, TypeID: r.TypeID, Tier: r.Tier.String()}
		if r.Tier == domain.TierPremium {
			out.Fee = cost.Format(r.Fee)
		}
		estimate.Requirements = append(estimate.Requirements, out)
	}

	c.JSON(http.StatusOK, gin.H{
		"data": estimate,
	})
}

// HealthCheck returns the health status of the API
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func parseEnvironment(c *gin.Context, env domain.Environment) (domain.Environment, bool) {
	if !env.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": ErrorBody{Code: apperrors.ErrCodeBadRequest, Message: "unknown environment " + env.String()},
		})
		return "", false
	}
	return env, true
}

func errorBody(err error) ErrorBody {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return ErrorBody{Code: appErr.Code, Message: appErr.Message}
	}
	return ErrorBody{Code: apperrors.ErrCodeInternal, Message: err.Error()}
}

// respondError sends an error response
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeBadRequest, apperrors.ErrCodeParse, apperrors.ErrCodeValidation:
		status = http.StatusBadRequest
	case apperrors.ErrCodeNameResolution:
		status = http.StatusUnprocessableEntity
	case apperrors.ErrCodeNetwork:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, gin.H{
		"error": errorBody(err),
	})
}
