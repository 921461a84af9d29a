package decision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novinai/sentinel/internal/calibrate"
	"github.com/novinai/sentinel/internal/domain"
	"github.com/novinai/sentinel/internal/evidence"
	"github.com/novinai/sentinel/internal/incident"
	"github.com/novinai/sentinel/internal/reason"
	"github.com/novinai/sentinel/internal/summary"
)

// EngineVersion is stamped into every assessment for audit.
const EngineVersion = "1.0.0"

// Processor orchestrates the assessment pipeline: incident windowing,
// evidence extraction, fusion, calibration, thresholding, and the
// explanatory artifacts.
type Processor struct {
	cfg         domain.EngineConfig
	store       *incident.Store
	extractor   domain.EvidenceExtractor
	fuser       *evidence.Fuser
	calibrator  *calibrate.System
	thresholder *Thresholder
	reasonerCfg reason.ReasonerConfig
	summarizer  summary.Provider
	logger      *slog.Logger
}

// NewProcessor wires the pipeline. summarizer may be nil; the templated
// narrative is then used unconditionally.
func NewProcessor(cfg domain.EngineConfig, extractor domain.EvidenceExtractor, summarizer summary.Provider, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:         cfg,
		store:       incident.NewStore(cfg.IncidentTTL, cfg.DuplicateWindow),
		extractor:   extractor,
		fuser:       evidence.NewFuser(cfg.PosCap, cfg.NegCap),
		calibrator:  calibrate.New(cfg),
		thresholder: NewThresholder(cfg),
		reasonerCfg: reason.DefaultReasonerConfig(),
		summarizer:  summarizer,
		logger:      logger,
	}
}

// Store exposes the incident store for read paths (open-incident listing
// and the periodic sweep).
func (p *Processor) Store() *incident.Store {
	return p.store
}

// ProcessEvent runs one raw event through the full pipeline. An error is
// returned only when no result can be produced at all; the caller must
// fail closed (treat the situation as Critical), never silently ignore.
func (p *Processor) ProcessEvent(ctx context.Context, homeID string, raw domain.RawEvent) (*domain.ThinkingResult, error) {
	start := time.Now()

	if homeID == "" {
		return nil, fmt.Errorf("process event: empty home id")
	}
	if raw.Timestamp.IsZero() {
		raw.Timestamp = start
	}

	ev := raw.Event(uuid.New().String(), p.extractor.Extract(raw))

	inc := p.store.UpsertEvent(homeID, ev)
	latest := inc.Latest()
	if latest == nil {
		return nil, fmt.Errorf("process event: incident %d has no events", inc.ID)
	}

	fused := p.fuser.Fuse(evidence.FusionInput{
		Evidence:       inc.FusedEvidence(p.cfg.PosCap, p.cfg.NegCap),
		Reliability:    evidence.FullReliability(),
		EntryPoint:     latest.EntryPoint,
		RangDoorbell:   latest.RangDoorbell,
		Knocked:        latest.Knocked,
		Token:          latest.Token,
		ExpectedWindow: latest.ExpectedWindow,
		PublicPath:     latest.PublicPath,
	})

	rawLogit := p.cfg.PriorLogit + fused.Sum
	cal := p.calibrator.Calibrate(rawLogit, calibrate.BucketFor(*latest))
	dec := p.thresholder.Decide(cal.Probability, cal.Uncertain, p.cfg.Profile)

	questions := reason.GenerateQuestions(fused.Sum, p.cfg.PriorLogit, latest.Camera, p.reasonerCfg, p.cfg.TopQuestions)
	counterfactuals := reason.MinimalChangesToThreshold(fused.Sum, p.cfg.PriorLogit, p.cfg.AlertThresholdLogit)

	result := &domain.ThinkingResult{
		AssessmentID:    uuid.New().String(),
		IncidentID:      inc.ID,
		HomeID:          homeID,
		PersonTrack:     inc.PersonTrack,
		FusedEvidence:   fused.Evidence,
		RawLogit:        rawLogit,
		Probability:     cal.Probability,
		Hint:            cal.Hint,
		Decision:        dec,
		Questions:       questions,
		Counterfactuals: counterfactuals,
		SuppressedCount: inc.SuppressedCount,
		Metadata: domain.AssessmentMetadata{
			EngineVersion: EngineVersion,
		},
	}
	result.Summary = p.summarize(ctx, inc, result)
	result.Metadata.ProcessMs = time.Since(start).Milliseconds()

	p.logger.Debug("event processed",
		"home_id", homeID,
		"incident_id", inc.ID,
		"raw_logit", rawLogit,
		"probability", cal.Probability,
		"decision", dec,
	)
	return result, nil
}

// summarize prefers the sidecar narrative and falls back to the template
// on any failure.
func (p *Processor) summarize(ctx context.Context, inc *domain.Incident, result *domain.ThinkingResult) string {
	in := summary.InputFor(inc, result.FusedEvidence, result.Decision, result.Probability)
	if p.summarizer != nil {
		if text, err := p.summarizer.Summarize(ctx, in); err == nil && text != "" {
			return text
		} else if err != nil {
			p.logger.Warn("summarizer failed, using template", "error", err)
		}
	}
	return summary.Template(in)
}

// RecordOutcome feeds a ground-truth label back into the context
// histograms and into the calibration bucket the event scored in.
func (p *Processor) RecordOutcome(raw domain.RawEvent, rawLogit float64, wasThreat bool) {
	p.extractor.Observe(raw, wasThreat)
	p.calibrator.AddOutcome(calibrate.BucketFor(raw.Event("", domain.Evidence{})), rawLogit, wasThreat)
}

// FailClosedResult is the safe fallback when the pipeline errors: a
// Critical decision with no probability claim.
func FailClosedResult(homeID string) *domain.ThinkingResult {
	return &domain.ThinkingResult{
		AssessmentID: uuid.New().String(),
		HomeID:       homeID,
		Decision:     domain.DecisionCritical,
		Hint:         domain.HintWait,
		Probability:  1.0,
		Summary:      "Assessment pipeline failed; treating activity as critical until evaluated.",
		Metadata: domain.AssessmentMetadata{
			EngineVersion: EngineVersion,
		},
	}
}

// FormatThinkingBlock renders a result as the plain-text explanation block
// embedded in notifications and logs.
func FormatThinkingBlock(result *domain.ThinkingResult) string {
	var b strings.Builder

	b.WriteString("=== [ThinkingAI] ===\n")
	b.WriteString(result.Summary)
	b.WriteString("\n\nDecision: ")
	b.WriteString(string(result.Decision))

	if len(result.Questions) > 0 {
		b.WriteString("\n\nSelf-Questions (Value of Information):\n")
		for i, q := range result.Questions {
			fmt.Fprintf(&b, "  %d. %s (dH=%.3f)\n", i+1, q.Kind, q.ExpectedEntropyReduction)
		}
	}

	if len(result.Counterfactuals) > 0 {
		b.WriteString("\nCounterfactuals to downgrade alert:\n")
		for _, cf := range result.Counterfactuals {
			fmt.Fprintf(&b, "  - %s (dLLR=%+.2f)\n", cf.Description, cf.DeltaLLR)
		}
	}

	b.WriteString("=== [/ThinkingAI] ===\n")
	return b.String()
}
