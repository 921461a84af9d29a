package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/novinai/sentinel/internal/activity"
	"github.com/novinai/sentinel/internal/decision"
	"github.com/novinai/sentinel/internal/domain"
	"github.com/novinai/sentinel/internal/policy"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo           domain.Repository
	cache          domain.Cache
	bus            domain.EventBus
	policies       *policy.Engine
	activity       *activity.Service
	processor      *decision.Processor
	version        string
	activityWindow int
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, policies *policy.Engine, activitySvc *activity.Service, processor *decision.Processor, version string) *Handler {
	return &Handler{
		repo:           repo,
		cache:          cache,
		bus:            bus,
		policies:       policies,
		activity:       activitySvc,
		processor:      processor,
		version:        version,
		activityWindow: 600,
	}
}

// EventRequest is the request body for POST /events.
type EventRequest struct {
	Timestamp   time.Time `json:"timestamp"`
	Zone        string    `json:"zone"`
	Camera      string    `json:"camera"`
	PersonTrack string    `json:"personTrack"`

	EntryPoint   string  `json:"entryPoint"`
	RangDoorbell bool    `json:"rangDoorbell"`
	Knocked      bool    `json:"knocked"`
	DwellSeconds float64 `json:"dwellSeconds"`
	PublicPath   bool    `json:"publicPath"`

	KnownFace      bool    `json:"knownFace"`
	FaceConfidence float64 `json:"faceConfidence"`
	FaceOccluded   bool    `json:"faceOccluded"`

	AwayProb           float64 `json:"awayProb"`
	PresenceConfidence float64 `json:"presenceConfidence"`
	ExpectedWindow     bool    `json:"expectedWindow"`
	Token              string  `json:"token"`
}

// RawEvent converts the request into the engine's input form.
func (req *EventRequest) RawEvent() domain.RawEvent {
	return domain.RawEvent{
		Timestamp:          req.Timestamp,
		Zone:               req.Zone,
		Camera:             req.Camera,
		PersonTrack:        req.PersonTrack,
		EntryPoint:         domain.EntryPoint(req.EntryPoint),
		RangDoorbell:       req.RangDoorbell,
		Knocked:            req.Knocked,
		DwellSeconds:       req.DwellSeconds,
		PublicPath:         req.PublicPath,
		KnownFace:          req.KnownFace,
		FaceConfidence:     req.FaceConfidence,
		FaceOccluded:       req.FaceOccluded,
		AwayProb:           req.AwayProb,
		PresenceConfidence: req.PresenceConfidence,
		ExpectedWindow:     req.ExpectedWindow,
		Token:              domain.AuthToken(req.Token),
	}
}

// AssessResponse is the response for POST /events.
type AssessResponse struct {
	AssessmentID string               `json:"assessmentId"`
	IncidentID   uint64               `json:"incidentId"`
	EventID      string               `json:"eventId"`
	Decision     domain.AlertDecision `json:"decision"`
	Probability  float64              `json:"probability"`
	Hint         domain.DecisionHint  `json:"hint"`
	Summary      string               `json:"summary"`
	Tags         []string             `json:"tags,omitempty"`
	Metadata     struct {
		TraceID  string `json:"traceId"`
		IngestMs int64  `json:"ingestMs"`
		TotalMs  int64  `json:"totalMs"`
		Version  string `json:"version"`
	} `json:"metadata"`
}

// IngestEvent handles POST /events requests: it runs the full assessment
// pipeline synchronously and returns the resulting decision.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	homeID := GetHomeID(ctx)
	traceID := GetTraceID(ctx)

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Camera == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "camera is required",
		})
		return
	}
	if req.PersonTrack == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "personTrack is required",
		})
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	ingestMs := time.Since(start).Milliseconds()

	raw := req.RawEvent()

	result, err := h.processor.ProcessEvent(ctx, homeID, raw)
	if err != nil {
		// Fail closed: an engine failure must never silence an alert.
		slog.Error("event processing failed, failing closed",
			"home_id", homeID,
			"error", err,
		)
		result = decision.FailClosedResult(homeID)
	}
	result.Metadata.TraceID = traceID

	ev := raw.Event(uuid.New().String(), result.FusedEvidence)

	var tags []string
	if h.policies != nil {
		policyResults, perr := h.policies.EvaluateAll(ctx, &policy.EvaluateInput{
			HomeID:         homeID,
			Event:          &ev,
			Result:         result,
			ActivityWindow: h.activityWindow,
		})
		if perr != nil {
			slog.Error("policy evaluation failed", "home_id", homeID, "error", perr)
		} else {
			final, notifyTags := policy.Apply(result.Decision, policyResults)
			if final != result.Decision {
				slog.Info("policy changed decision",
					"home_id", homeID,
					"from", result.Decision,
					"to", final,
				)
				result.Decision = final
			}
			tags = notifyTags
		}
	}

	if h.activity != nil {
		if aerr := h.activity.Record(ctx, homeID, raw.Zone, time.Duration(h.activityWindow)*time.Second); aerr != nil {
			slog.Warn("activity record failed", "home_id", homeID, "error", aerr)
		}
	}

	if h.repo != nil {
		if serr := h.repo.SaveEvent(ctx, homeID, &ev); serr != nil {
			slog.Error("failed to save event", "home_id", homeID, "error", serr)
		}
		if serr := h.repo.SaveAssessment(ctx, homeID, result); serr != nil {
			slog.Error("failed to save assessment", "home_id", homeID, "error", serr)
		}
	}

	if h.cache != nil {
		entry := &domain.AssessmentCache{
			AssessmentID: result.AssessmentID,
			IncidentID:   result.IncidentID,
			Decision:     result.Decision,
			Probability:  result.Probability,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		}
		if cerr := h.cache.SetAssessment(ctx, homeID, raw.PersonTrack, entry, 5*time.Minute); cerr != nil {
			slog.Warn("failed to cache assessment", "home_id", homeID, "error", cerr)
		}
	}

	if h.bus != nil {
		resultPayload, _ := json.Marshal(result)
		if berr := h.bus.Publish(ctx, homeID, domain.TopicDecision, resultPayload); berr != nil {
			slog.Error("failed to publish decision", "home_id", homeID, "error", berr)
		}
		if decision.ShouldAlert(result) {
			if berr := h.bus.Publish(ctx, homeID, domain.TopicAlert, resultPayload); berr != nil {
				slog.Error("failed to publish alert", "home_id", homeID, "error", berr)
			}
		}
	}

	totalMs := time.Since(start).Milliseconds()

	resp := AssessResponse{
		AssessmentID: result.AssessmentID,
		IncidentID:   result.IncidentID,
		EventID:      ev.ID,
		Decision:     result.Decision,
		Probability:  result.Probability,
		Hint:         result.Hint,
		Summary:      result.Summary,
		Tags:         tags,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.IngestMs = ingestMs
	resp.Metadata.TotalMs = totalMs
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetAssessment retrieves an assessment by ID.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	homeID := GetHomeID(ctx)
	assessmentID := chi.URLParam(r, "id")

	if assessmentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "assessment id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	res, err := h.repo.GetAssessment(ctx, homeID, assessmentID)
	if err != nil {
		slog.Error("failed to get assessment", "id", assessmentID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "assessment not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ListAssessments lists recent assessments for the home. The optional
// sinceMinutes query parameter bounds the lookback (default 60).
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	homeID := GetHomeID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	sinceMinutes := 60
	if v := r.URL.Query().Get("sinceMinutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "sinceMinutes must be a positive integer",
			})
			return
		}
		sinceMinutes = n
	}

	since := time.Now().UTC().Add(-time.Duration(sinceMinutes) * time.Minute)
	results, err := h.repo.ListAssessments(ctx, homeID, since)
	if err != nil {
		slog.Error("failed to list assessments", "home_id", homeID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list assessments",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessments": results,
		"count":       len(results),
	})
}

// GetEvent retrieves an event by ID.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	homeID := GetHomeID(ctx)
	eventID := chi.URLParam(r, "id")

	if eventID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "event id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	ev, err := h.repo.GetEvent(ctx, homeID, eventID)
	if err != nil {
		slog.Error("failed to get event", "id", eventID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "event not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, ev)
}

// ListIncidents returns the home's currently open incidents from the
// in-memory store. Incidents are not persisted, so this reflects live
// windowing state only.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	homeID := GetHomeID(r.Context())

	incidents := h.processor.Store().OpenIncidents(homeID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

// OutcomeRequest is the request body for POST /outcomes. The original
// event is included so the context models can learn from the label.
type OutcomeRequest struct {
	AssessmentID string       `json:"assessmentId"`
	RawLogit     float64      `json:"rawLogit"`
	WasThreat    bool         `json:"wasThreat"`
	Event        EventRequest `json:"event"`
}

// RecordOutcome handles POST /outcomes: it feeds a ground-truth label
// back into the calibration and context-model learning loops.
func (h *Handler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	homeID := GetHomeID(ctx)

	var req OutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Event.PersonTrack == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "event.personTrack is required",
		})
		return
	}

	h.processor.RecordOutcome(req.Event.RawEvent(), req.RawLogit, req.WasThreat)

	outcome := &domain.Outcome{
		ID:           uuid.New().String(),
		HomeID:       homeID,
		AssessmentID: req.AssessmentID,
		RawLogit:     req.RawLogit,
		WasThreat:    req.WasThreat,
		RecordedAt:   time.Now().UTC(),
	}

	if h.repo != nil {
		if err := h.repo.SaveOutcome(ctx, homeID, outcome); err != nil {
			slog.Error("failed to save outcome", "home_id", homeID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save outcome",
			})
			return
		}
	}

	slog.Info("outcome recorded",
		"home_id", homeID,
		"assessment_id", req.AssessmentID,
		"was_threat", req.WasThreat,
	)
	writeJSON(w, http.StatusCreated, outcome)
}

// ListPolicies returns all policies loaded in the engine.
// Policies are loaded from the database at startup and can be reloaded
// via POST /policies/reload.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	loadedPolicies := h.policies.GetLoadedPolicies()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"policies": loadedPolicies,
		"count":    len(loadedPolicies),
		"source":   "database",
	})
}

// GetPolicy retrieves a policy by ID from the loaded engine policies.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "id")

	if policyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy id is required",
		})
		return
	}

	for _, p := range h.policies.GetLoadedPolicies() {
		if p.ID == policyID {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "policy not found",
	})
}

// CreatePolicyRequest is the request body for creating a policy.
type CreatePolicyRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Action      string `json:"action"`
	Reason      string `json:"reason,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// GlobalHomeID marks a policy row that applies to every home. Stored
// policies with this home ID are loaded into the engine with an empty
// HomeID so they match all homes.
const GlobalHomeID = "*"

// CreatePolicy creates a new policy scoped to the requesting home and
// saves it to the database. After saving, call POST /policies/reload to
// hot-reload into the engine.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	homeID := GetHomeID(ctx)

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	cfg := &domain.PolicyConfig{
		ID:          req.ID,
		HomeID:      homeID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Action:      domain.PolicyAction(req.Action),
		Reason:      req.Reason,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression and action before persisting
	if err := h.policies.ValidatePolicy(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid policy: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SavePolicy(ctx, homeID, cfg); err != nil {
			slog.Error("failed to save policy", "id", cfg.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save policy",
			})
			return
		}
	}

	slog.Info("policy created", "id", cfg.ID, "name", cfg.Name, "home_id", homeID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"policy":  cfg,
		"message": "Policy created. Call POST /policies/reload to apply changes.",
	})
}

// UpdatePolicy updates an existing policy for the requesting home.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	homeID := GetHomeID(ctx)
	policyID := chi.URLParam(r, "id")

	if policyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy id is required",
		})
		return
	}

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and expression are required",
		})
		return
	}

	cfg := &domain.PolicyConfig{
		ID:          policyID,
		HomeID:      homeID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Action:      domain.PolicyAction(req.Action),
		Reason:      req.Reason,
		Enabled:     req.Enabled,
	}

	if err := h.policies.ValidatePolicy(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid policy: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SavePolicy(ctx, homeID, cfg); err != nil {
			slog.Error("failed to update policy", "id", policyID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to update policy",
			})
			return
		}
	}

	slog.Info("policy updated", "id", policyID, "home_id", homeID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"policy":  cfg,
		"message": "Policy updated. Call POST /policies/reload to apply changes.",
	})
}

// DeletePolicy soft-deletes a policy and auto-reloads the engine.
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	homeID := GetHomeID(ctx)
	policyID := chi.URLParam(r, "id")

	if policyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeletePolicy(ctx, homeID, policyID); err != nil {
			slog.Error("failed to delete policy", "id", policyID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "policy not found",
			})
			return
		}

		if err := h.reloadPoliciesFromRepo(ctx, homeID); err != nil {
			slog.Error("failed to reload policies after delete", "error", err)
		} else {
			slog.Info("policies auto-reloaded after delete")
		}
	}

	slog.Info("policy deleted", "id", policyID, "home_id", homeID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Policy deleted and engine reloaded.",
	})
}

// ReloadPolicies reloads policies from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	homeID := GetHomeID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.reloadPoliciesFromRepo(ctx, homeID); err != nil {
		slog.Error("failed to reload policies", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload policies: " + err.Error(),
		})
		return
	}

	count := h.policies.PoliciesCount()
	slog.Info("policies reloaded from database", "count", count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "policies reloaded successfully",
		"count":   count,
	})
}

// reloadPoliciesFromRepo rebuilds the engine's policy set from the
// global row set plus the requesting home's rows.
func (h *Handler) reloadPoliciesFromRepo(ctx context.Context, homeID string) error {
	globals, err := h.repo.ListPolicies(ctx, GlobalHomeID)
	if err != nil {
		return err
	}
	// Stored global rows carry the sentinel home ID; clear it so the
	// engine applies them to every home.
	for _, p := range globals {
		if p.HomeID == GlobalHomeID {
			p.HomeID = ""
		}
	}

	configs := globals
	if homeID != "" && homeID != GlobalHomeID {
		homePolicies, err := h.repo.ListPolicies(ctx, homeID)
		if err != nil {
			return err
		}
		configs = append(configs, homePolicies...)
	}

	return h.policies.ReloadPolicies(configs)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
