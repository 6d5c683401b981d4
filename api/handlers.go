/*
handlers.go - HTTP API handlers for the bonus engine

PURPOSE:
  Exposes the bonus engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the bonus package.

ENDPOINTS:
  Persons:
    GET    /api/persons                  List all persons
    POST   /api/persons                  Create person
    DELETE /api/persons                  Clear the roster
    GET    /api/persons/{id}             Get person details
    PUT    /api/persons/{id}             Replace person
    DELETE /api/persons/{id}             Delete person
    GET    /api/persons/{id}/breakdown   Bonus breakdown for one person

  Parameters:
    GET    /api/params                   Current parameter set
    PUT    /api/params                   Update parameter set (POST accepted)

  Calculation:
    GET    /api/roles                    Role catalog
    GET    /api/calculation              Breakdown per person + summary
    GET    /api/report.xlsx              Excel workbook

  Scenarios:
    GET    /api/scenarios                List demo rosters
    GET    /api/scenarios/current        Currently loaded roster
    POST   /api/scenarios/load           Load a demo roster
    POST   /api/scenarios/reset          Clear persons and parameters

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: persons and parameters
  - Logger, Metrics: ambient observability
  - Workers: fan-out for roster calculations

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown role
  - 404: Person not found
  - 409: Duplicate person ID
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo rosters
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/trouble2112/Bouns-tools/bonus"
	"github.com/trouble2112/Bouns-tools/observability"
	"github.com/trouble2112/Bouns-tools/report"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("api")

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   bonus.Store
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Workers bounds concurrent Compute calls per roster. Zero means no limit.
	Workers int

	now func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. A nil logger or metrics is replaced
// with a no-op logger or a fresh private registry.
func NewHandler(store bonus.Store, logger *zap.Logger, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Handler{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// PERSON HANDLERS
// =============================================================================

// ListPersons returns all persons in insertion order.
func (h *Handler) ListPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := h.Store.ListPersons(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list_persons", "Failed to list persons", err)
		return
	}

	dtos := make([]PersonDTO, len(persons))
	for i, p := range persons {
		dtos[i] = toPersonDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPerson returns a single person.
func (h *Handler) GetPerson(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPerson(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(*p))
}

// CreatePerson validates and stores a new person.
func (h *Handler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req PersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := req.toPerson("")
	if err != nil {
		h.writeServiceError(w, r, "create_person", "Invalid person", err)
		return
	}
	params, ok := h.parameters(w, r)
	if !ok {
		return
	}
	if err := bonus.ValidatePerson(p, params).Err(p.Name); err != nil {
		h.writeServiceError(w, r, "create_person", "Invalid person", err)
		return
	}

	created, err := h.Store.CreatePerson(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, r, "create_person", "Failed to create person", err)
		return
	}

	h.Logger.Info("person created",
		zap.String("person_id", created.ID),
		zap.String("role", string(created.Role)),
	)
	writeJSON(w, http.StatusCreated, toPersonDTO(created))
}

// UpdatePerson replaces an existing person.
func (h *Handler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := req.toPerson(id)
	if err != nil {
		h.writeServiceError(w, r, "update_person", "Invalid person", err)
		return
	}
	params, ok := h.parameters(w, r)
	if !ok {
		return
	}
	if err := bonus.ValidatePerson(p, params).Err(id); err != nil {
		h.writeServiceError(w, r, "update_person", "Invalid person", err)
		return
	}

	updated, err := h.Store.UpdatePerson(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, r, "update_person", "Failed to update person", err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(updated))
}

// DeletePerson removes one person.
func (h *Handler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeletePerson(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "delete_person", "Failed to delete person", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllPersons clears the roster. Parameters are kept.
func (h *Handler) DeleteAllPersons(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteAllPersons(r.Context()); err != nil {
		h.writeServiceError(w, r, "delete_all_persons", "Failed to clear persons", err)
		return
	}
	h.setCurrentScenario("")
	w.WriteHeader(http.StatusNoContent)
}

// GetPersonBreakdown computes the bonus of one stored person.
func (h *Handler) GetPersonBreakdown(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPerson(w, r)
	if !ok {
		return
	}
	params, ok := h.parameters(w, r)
	if !ok {
		return
	}

	b, err := bonus.Compute(*p, params)
	if err != nil {
		h.writeServiceError(w, r, "compute", "Failed to compute bonus", err)
		return
	}
	writeJSON(w, http.StatusOK, toBreakdownDTO(b, bonus.ValidatePerson(*p, params)))
}

func (h *Handler) lookupPerson(w http.ResponseWriter, r *http.Request) (*bonus.Person, bool) {
	id := chi.URLParam(r, "id")

	p, err := h.Store.GetPerson(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get_person", "Failed to get person", err)
		return nil, false
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Person not found", nil)
		return nil, false
	}
	return p, true
}

// =============================================================================
// PARAMETER HANDLERS
// =============================================================================

// GetParameters returns the current parameter set.
func (h *Handler) GetParameters(w http.ResponseWriter, r *http.Request) {
	params, ok := h.parameters(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toParametersDTO(params))
}

// SaveParameters overlays the request on the current parameters, validates
// and stores the result.
func (h *Handler) SaveParameters(w http.ResponseWriter, r *http.Request) {
	var req ParametersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	current, ok := h.parameters(w, r)
	if !ok {
		return
	}
	next, err := req.apply(current)
	if err != nil {
		h.writeServiceError(w, r, "save_parameters", "Invalid parameters", err)
		return
	}
	if err := h.Store.SaveParameters(r.Context(), next); err != nil {
		h.writeServiceError(w, r, "save_parameters", "Failed to save parameters", err)
		return
	}

	saved, ok := h.parameters(w, r)
	if !ok {
		return
	}
	h.Logger.Info("parameters saved",
		zap.String("dm_mode", string(saved.DMMode)),
		zap.String("other_mode", string(saved.OtherMode)),
		zap.Bool("split_payout", saved.SplitPayout),
	)
	writeJSON(w, http.StatusOK, toParametersDTO(saved))
}

func (h *Handler) parameters(w http.ResponseWriter, r *http.Request) (bonus.Parameters, bool) {
	params, err := h.Store.GetParameters(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "get_parameters", "Failed to load parameters", err)
		return bonus.Parameters{}, false
	}
	return params, true
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// ListRoles returns the role catalog in display order.
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles := bonus.Roles()
	dtos := make([]RoleDTO, len(roles))
	for i, p := range roles {
		dtos[i] = toRoleDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCalculation computes every stored person and the roster summary.
func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "GET /api/calculation")
	defer span.End()

	calc, err := h.calculate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.writeServiceError(w, r, "calculate", "Failed to calculate bonuses", err)
		return
	}
	span.SetAttributes(
		attribute.Int("bonus.persons", calc.summary.Count),
		attribute.String("bonus.total", calc.summary.Total.StringFixed(2)),
	)

	resp := CalculationResponse{
		Parameters:  toParametersDTO(calc.params),
		Results:     make([]BreakdownDTO, len(calc.breakdowns)),
		Summary:     toSummaryDTO(calc.summary),
		GeneratedAt: h.now(),
	}
	for i, b := range calc.breakdowns {
		resp.Results[i] = toBreakdownDTO(b, calc.validation[b.PersonID])
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetReport streams the Excel workbook for the current roster.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "GET /api/report.xlsx")
	defer span.End()

	calc, err := h.calculate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.writeServiceError(w, r, "report", "Failed to calculate bonuses", err)
		return
	}

	rows := make([]report.Row, len(calc.breakdowns))
	for i, b := range calc.breakdowns {
		rows[i] = report.Row{
			Person:    calc.persons[i],
			Breakdown: b,
			Warnings:  calc.validation[b.PersonID].Warnings,
		}
	}

	now := h.now()
	f, err := report.Build(rows, calc.summary, now)
	if err != nil {
		h.writeServiceError(w, r, "report", "Failed to build report", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bonus_report_%s.xlsx"`, now.Format("20060102_150405")))
	if err := f.Write(w); err != nil {
		// Headers are already sent.
		h.Logger.Error("writing report", zap.Error(err), zap.String("request_id", middleware.GetReqID(r.Context())))
		return
	}
	h.Metrics.IncrReport()
}

type calculation struct {
	persons    []bonus.Person
	params     bonus.Parameters
	breakdowns []bonus.Breakdown
	validation map[string]bonus.ValidationResult
	summary    bonus.Summary
}

// calculate loads the roster and parameters and computes every person.
// breakdowns[i] belongs to persons[i].
func (h *Handler) calculate(ctx context.Context) (*calculation, error) {
	persons, err := h.Store.ListPersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing persons: %w", err)
	}
	params, err := h.Store.GetParameters(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading parameters: %w", err)
	}

	start := time.Now()
	breakdowns, err := bonus.ComputeAll(ctx, persons, params, h.Workers)
	if err != nil {
		return nil, err
	}
	h.Metrics.ObserveCalculation(time.Since(start), len(persons))

	return &calculation{
		persons:    persons,
		params:     params,
		breakdowns: breakdowns,
		validation: bonus.ValidateRoster(persons, params),
		summary:    bonus.Aggregate(breakdowns),
	}, nil
}

// =============================================================================
// HEALTH
// =============================================================================

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness. Stores that can be pinged are checked.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.Logger.Error("health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain and store errors to a status code.
// Internal errors are logged and counted under op.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op, message string, err error) {
	var (
		status int
		code   string
	)
	switch {
	case bonus.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case bonus.IsConflict(err):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, bonus.ErrUnknownRole):
		status, code = http.StatusBadRequest, "unknown_role"
	case errors.Is(err, bonus.ErrInvalidParameters):
		status, code = http.StatusBadRequest, "invalid_parameters"
	case bonus.IsClientError(err):
		status, code = http.StatusBadRequest, "validation_failed"
	default:
		status, code = http.StatusInternalServerError, "internal"
		h.Metrics.IncrStoreError(op)
		h.Logger.Error(message,
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}

	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}
	var ve *bonus.ValidationError
	var pe *bonus.ParametersError
	switch {
	case errors.As(err, &ve):
		resp.Details = toIssueDTOs(ve.Issues)
	case errors.As(err, &pe):
		resp.Details = toIssueDTOs(pe.Issues)
	}
	writeJSON(w, status, resp)
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

func (h *Handler) scenario() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentScenario
}
