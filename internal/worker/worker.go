// Package worker provides async event processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/novinai/sentinel/internal/activity"
	"github.com/novinai/sentinel/internal/decision"
	"github.com/novinai/sentinel/internal/domain"
	"github.com/novinai/sentinel/internal/policy"
)

// Worker processes security events asynchronously from the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	cache     domain.Cache
	processor *decision.Processor
	policies  *policy.Engine
	activity  *activity.Service

	activityWindow int

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// HomeIDs is the list of homes to process (empty = all via the global subject)
	HomeIDs []string

	// ActivityWindow is the recent-activity window in seconds fed to
	// policy expressions. Zero disables the lookup.
	ActivityWindow int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, processor *decision.Processor, policies *policy.Engine, activitySvc *activity.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		cache:     cache,
		processor: processor,
		policies:  policies,
		activity:  activitySvc,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing events for the given homes.
func (w *Worker) Start(cfg Config) error {
	w.activityWindow = cfg.ActivityWindow

	if len(cfg.HomeIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, homeID := range cfg.HomeIDs {
		if err := w.startHomeWorker(homeID); err != nil {
			slog.Error("failed to start worker for home",
				"home_id", homeID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"home_count", len(cfg.HomeIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all homes (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicEventIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startHomeWorker starts workers for a specific home.
func (w *Worker) startHomeWorker(homeID string) error {
	sub, err := w.bus.Subscribe(w.ctx, homeID, domain.TopicEventIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processEvent(ctx, homeID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	outcomeSub, err := w.bus.Subscribe(w.ctx, homeID, domain.TopicOutcome, func(ctx context.Context, msg *domain.Message) error {
		return w.processOutcome(ctx, homeID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, outcomeSub)

	slog.Info("home worker started",
		"home_id", homeID,
		"topic", domain.TopicEventIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processEvent(ctx, msg.HomeID, msg)
}

// EventMessage is the message payload for event processing.
type EventMessage struct {
	HomeID  string `json:"homeId"`
	TraceID string `json:"traceId,omitempty"`

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

// RawEvent converts the wire message into the engine's input form.
func (m *EventMessage) RawEvent() domain.RawEvent {
	return domain.RawEvent{
		Timestamp:          m.Timestamp,
		Zone:               m.Zone,
		Camera:             m.Camera,
		PersonTrack:        m.PersonTrack,
		EntryPoint:         domain.EntryPoint(m.EntryPoint),
		RangDoorbell:       m.RangDoorbell,
		Knocked:            m.Knocked,
		DwellSeconds:       m.DwellSeconds,
		PublicPath:         m.PublicPath,
		KnownFace:          m.KnownFace,
		FaceConfidence:     m.FaceConfidence,
		FaceOccluded:       m.FaceOccluded,
		AwayProb:           m.AwayProb,
		PresenceConfidence: m.PresenceConfidence,
		ExpectedWindow:     m.ExpectedWindow,
		Token:              domain.AuthToken(m.Token),
	}
}

// OutcomeMessage is the message payload for ground-truth feedback.
type OutcomeMessage struct {
	HomeID       string  `json:"homeId"`
	AssessmentID string  `json:"assessmentId,omitempty"`
	RawLogit     float64 `json:"rawLogit"`
	WasThreat    bool    `json:"wasThreat"`

	Event EventMessage `json:"event"`
}

// processEvent runs one event through the assessment pipeline.
func (w *Worker) processEvent(ctx context.Context, homeID string, msg *domain.Message) error {
	start := time.Now()

	var evMsg EventMessage
	if err := json.Unmarshal(msg.Payload, &evMsg); err != nil {
		slog.Error("failed to parse event message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message home if provided
	if evMsg.HomeID != "" {
		homeID = evMsg.HomeID
	}

	traceID := evMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing event",
		"home_id", homeID,
		"zone", evMsg.Zone,
		"trace_id", traceID,
	)

	raw := evMsg.RawEvent()

	result, err := w.processor.ProcessEvent(ctx, homeID, raw)
	if err != nil {
		slog.Error("event processing failed, failing closed",
			"home_id", homeID,
			"error", err,
		)
		result = decision.FailClosedResult(homeID)
	}
	result.Metadata.TraceID = traceID

	ev := raw.Event(uuid.New().String(), result.FusedEvidence)

	// Apply per-home alert policies
	if w.policies != nil {
		policyResults, perr := w.policies.EvaluateAll(ctx, &policy.EvaluateInput{
			HomeID:         homeID,
			Event:          &ev,
			Result:         result,
			ActivityWindow: w.activityWindow,
		})
		if perr != nil {
			slog.Error("policy evaluation failed",
				"home_id", homeID,
				"error", perr,
			)
		} else {
			final, tags := policy.Apply(result.Decision, policyResults)
			if final != result.Decision {
				slog.Info("policy changed decision",
					"home_id", homeID,
					"from", result.Decision,
					"to", final,
				)
				result.Decision = final
			}
			for _, tag := range tags {
				slog.Info("policy notify",
					"home_id", homeID,
					"policy_id", tag,
				)
			}
		}
	}

	// Track zone activity for future policy lookups
	if w.activity != nil && w.activityWindow > 0 {
		if aerr := w.activity.Record(ctx, homeID, raw.Zone, time.Duration(w.activityWindow)*time.Second); aerr != nil {
			slog.Warn("activity record failed",
				"home_id", homeID,
				"error", aerr,
			)
		}
	}

	// Persist the audit trail
	if w.repo != nil {
		if err := w.repo.SaveEvent(ctx, homeID, &ev); err != nil {
			slog.Error("failed to save event",
				"home_id", homeID,
				"error", err,
			)
		}
		if err := w.repo.SaveAssessment(ctx, homeID, result); err != nil {
			slog.Error("failed to save assessment",
				"home_id", homeID,
				"assessment_id", result.AssessmentID,
				"error", err,
			)
		}
	}

	// Cache the latest assessment on the fast path
	if w.cache != nil && raw.PersonTrack != "" {
		_ = w.cache.SetAssessment(ctx, homeID, raw.PersonTrack, &domain.AssessmentCache{
			AssessmentID: result.AssessmentID,
			IncidentID:   result.IncidentID,
			Decision:     result.Decision,
			Probability:  result.Probability,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		}, 5*time.Minute)
	}

	// Publish result to decision topic
	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, homeID, domain.TopicDecision, resultPayload); err != nil {
		slog.Error("failed to publish decision",
			"home_id", homeID,
			"error", err,
		)
	}

	// If alert-worthy, publish to alert topic
	if decision.ShouldAlert(result) {
		if err := w.bus.Publish(ctx, homeID, domain.TopicAlert, resultPayload); err != nil {
			slog.Error("failed to publish alert",
				"home_id", homeID,
				"error", err,
			)
		}
	}

	slog.Info("event processed",
		"home_id", homeID,
		"incident_id", result.IncidentID,
		"decision", result.Decision,
		"probability", result.Probability,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// processOutcome feeds a ground-truth label back into the learning loops.
func (w *Worker) processOutcome(ctx context.Context, homeID string, msg *domain.Message) error {
	var outMsg OutcomeMessage
	if err := json.Unmarshal(msg.Payload, &outMsg); err != nil {
		slog.Error("failed to parse outcome message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if outMsg.HomeID != "" {
		homeID = outMsg.HomeID
	}

	w.processor.RecordOutcome(outMsg.Event.RawEvent(), outMsg.RawLogit, outMsg.WasThreat)

	if w.repo != nil {
		outcome := &domain.Outcome{
			ID:           uuid.New().String(),
			HomeID:       homeID,
			AssessmentID: outMsg.AssessmentID,
			RawLogit:     outMsg.RawLogit,
			WasThreat:    outMsg.WasThreat,
			RecordedAt:   time.Now().UTC(),
		}
		if err := w.repo.SaveOutcome(ctx, homeID, outcome); err != nil {
			slog.Error("failed to save outcome",
				"home_id", homeID,
				"error", err,
			)
		}
	}

	slog.Info("outcome recorded",
		"home_id", homeID,
		"was_threat", outMsg.WasThreat,
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
