package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rampart-ai/rampart/internal/normalize"
)

// Recorder receives every decision for audit logging, metrics, and
// progressive response. Implementations must never let a failure
// propagate back into the validation path.
type Recorder interface {
	Record(decision *SecurityDecision, originalText string, processingTime time.Duration, sessionID string, metadata map[string]string)
	RecordBypass()
}

// GuidanceProvider produces educational feedback for non-PASS decisions.
type GuidanceProvider interface {
	Guidance(decision *SecurityDecision, sessionID string) *GuidanceMessage
}

// Options configures the orchestrator.
type Options struct {
	Enabled             bool
	Parallel            bool
	Budget              time.Duration // per-request wall-clock budget for detection
	WorkerPool          int           // max concurrent detectors when Parallel
	Decision            DecisionConfig
	ConfidenceThreshold float64         // server default per-detector confidence floor
	DetectorEnabled     map[string]bool // server-level switches; missing = enabled
	ProvideGuidance     bool
}

// Request is one validation call.
type Request struct {
	Text      string
	SessionID string
	Metadata  map[string]string
	Policy    *PolicyConfig // per-client overrides, nil for server defaults
}

// Orchestrator owns the detector set and drives normalization, detection,
// aggregation, and the final decision for every request.
type Orchestrator struct {
	opts       Options
	detectors  []Detector
	normalizer *normalize.Normalizer
	sanitizer  *Sanitizer
	optimizer  Optimizer // nil disables result caching
	recorder   Recorder
	guidance   GuidanceProvider
	logger     *zap.Logger
}

// NewOrchestrator wires the orchestrator. recorder and guidance may be
// nil; optimizer may be nil to run detectors uncached.
func NewOrchestrator(opts Options, detectors []Detector, normalizer *normalize.Normalizer,
	sanitizer *Sanitizer, optimizer Optimizer, recorder Recorder, guidance GuidanceProvider,
	logger *zap.Logger) *Orchestrator {

	if opts.Budget <= 0 {
		opts.Budget = 100 * time.Millisecond
	}
	if opts.WorkerPool <= 0 {
		opts.WorkerPool = len(detectors)
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if opts.Decision.BlockThreshold <= 0 && opts.Decision.FlagThreshold <= 0 {
		opts.Decision = DefaultDecisionConfig()
	}
	return &Orchestrator{
		opts:       opts,
		detectors:  detectors,
		normalizer: normalizer,
		sanitizer:  sanitizer,
		optimizer:  optimizer,
		recorder:   recorder,
		guidance:   guidance,
		logger:     logger,
	}
}

const failSecureMessage = "Security validation failed, please try again."

// Validate inspects the text and returns the enforcement decision.
// It never returns an error: any internal fault degrades to a BLOCK
// decision with confidence 1.0.
func (o *Orchestrator) Validate(ctx context.Context, req *Request) (decision *SecurityDecision) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("validation panic, failing secure", zap.Any("panic", r))
			decision = &SecurityDecision{
				Action:           ActionBlock,
				Confidence:       1.0,
				UserMessage:      failSecureMessage,
				TechnicalDetails: fmt.Sprintf("internal error: %v", r),
			}
		}
		if o.recorder != nil {
			o.recorder.Record(decision, req.Text, time.Since(start), req.SessionID, req.Metadata)
		}
	}()

	if !o.opts.Enabled {
		if o.recorder != nil {
			o.recorder.RecordBypass()
		}
		return &SecurityDecision{Action: ActionPass, Confidence: 0}
	}

	in := o.normalizer.Normalize(req.Text)

	results := o.runDetectors(ctx, in, req.Policy)
	o.applyConfidenceThresholds(results, req.Policy)

	agg := Aggregate(results)
	action := Decide(agg, results, o.opts.Decision)
	confidence := OverallConfidence(results, agg.MaxConfidence)

	decision = &SecurityDecision{
		Action:           action,
		Confidence:       confidence,
		DetectedAttacks:  agg.Patterns,
		DetectionResults: results,
	}

	switch action {
	case ActionFlag:
		if o.sanitizer != nil {
			if sanitized, ok := o.sanitizer.Sanitize(in.NormalizedText, agg.Patterns); ok {
				decision.SanitizedInput = sanitized
			}
		}
	case ActionBlock:
		decision.UserMessage = "Your request was blocked by security policy."
	}

	if action != ActionPass {
		decision.TechnicalDetails = technicalSummary(agg)
		if o.opts.ProvideGuidance && o.guidance != nil {
			if g := o.guidance.Guidance(decision, req.SessionID); g != nil {
				decision.Guidance = g
				if decision.UserMessage == "" {
					decision.UserMessage = g.Content
				}
			}
		}
	}

	return decision
}

// runDetectors invokes every enabled detector and always returns one
// result per invoked detector. Failures and timeouts yield synthetic
// non-attack results so aggregation sees a complete picture.
func (o *Orchestrator) runDetectors(ctx context.Context, in *normalize.Input, policy *PolicyConfig) []DetectionResult {
	active := make([]Detector, 0, len(o.detectors))
	for _, d := range o.detectors {
		if enabled, ok := o.opts.DetectorEnabled[d.Name()]; ok && !enabled {
			continue
		}
		if !policy.GetDetectorPolicy(d.Name()).IsEnabled() {
			continue
		}
		active = append(active, d)
	}
	if len(active) == 0 {
		return nil
	}

	if !o.opts.Parallel {
		return o.runSequential(ctx, active, in)
	}
	return o.runParallel(ctx, active, in)
}

func (o *Orchestrator) runSequential(ctx context.Context, active []Detector, in *normalize.Input) []DetectionResult {
	ctx, cancel := context.WithTimeout(ctx, o.opts.Budget)
	defer cancel()

	results := make([]DetectionResult, len(active))
	for i, d := range active {
		results[i] = o.safeDetect(ctx, d, in)
	}
	return results
}

type indexedResult struct {
	index  int
	result DetectionResult
}

// runParallel fans out to a bounded worker pool under the wall-clock
// budget. Each goroutine sends its result through a buffered channel, so
// the main goroutine can collect completed results without racing
// against in-flight writes. When the deadline fires, every detector that
// has not reported gets a synthetic timeout result; late goroutines send
// into the buffered channel and are never read.
func (o *Orchestrator) runParallel(ctx context.Context, active []Detector, in *normalize.Input) []DetectionResult {
	ctx, cancel := context.WithTimeout(ctx, o.opts.Budget)
	defer cancel()

	ch := make(chan indexedResult, len(active))
	sem := make(chan struct{}, o.opts.WorkerPool)

	for i, det := range active {
		go func(idx int, d Detector) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			ch <- indexedResult{index: idx, result: o.safeDetect(ctx, d, in)}
		}(i, det)
	}

	results := make([]DetectionResult, len(active))
	reported := make([]bool, len(active))
	remaining := len(active)
	for remaining > 0 {
		select {
		case out := <-ch:
			results[out.index] = out.result
			reported[out.index] = true
			remaining--
		case <-ctx.Done():
			o.logger.Warn("detection budget exceeded, substituting timeout results",
				zap.Duration("budget", o.opts.Budget))
			remaining = 0
		}
	}

	for i, ok := range reported {
		if !ok {
			results[i] = DetectionResult{
				DetectorName: active[i].Name(),
				Evidence:     []string{"detector timed out within validation budget"},
			}
		}
	}
	return results
}

// safeDetect isolates a single detector: panics and errors become
// synthetic non-attack results that name the failure.
func (o *Orchestrator) safeDetect(ctx context.Context, d Detector, in *normalize.Input) (result DetectionResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("detector panic", zap.String("detector", d.Name()), zap.Any("panic", r))
			result = DetectionResult{
				DetectorName: d.Name(),
				Evidence:     []string{fmt.Sprintf("detector panic: %v", r)},
			}
		}
	}()

	var (
		res *DetectionResult
		err error
	)
	if o.optimizer != nil {
		res, err = o.optimizer.CachedDetect(ctx, d, in)
	} else {
		res, err = d.Detect(ctx, in)
	}
	if err != nil {
		o.logger.Warn("detector error", zap.String("detector", d.Name()), zap.Error(err))
		return DetectionResult{
			DetectorName: d.Name(),
			Evidence:     []string{"detector error: " + err.Error()},
		}
	}
	if res == nil {
		return DetectionResult{DetectorName: d.Name()}
	}
	// Copy before stamping the name: the optimizer shares one cached
	// *DetectionResult across concurrent requests.
	out := *res
	out.DetectorName = d.Name()
	return out
}

// applyConfidenceThresholds neutralizes attacking results whose
// confidence falls under the effective per-detector floor.
func (o *Orchestrator) applyConfidenceThresholds(results []DetectionResult, policy *PolicyConfig) {
	for i := range results {
		r := &results[i]
		if !r.IsAttack {
			continue
		}
		threshold := policy.GetDetectorPolicy(r.DetectorName).
			EffectiveConfidenceThreshold(o.opts.ConfidenceThreshold)
		if r.Confidence < threshold {
			r.IsAttack = false
			r.MatchedPatterns = nil
			r.SuggestedAction = ActionPass
		}
	}
}

func technicalSummary(agg Aggregation) string {
	if len(agg.Patterns) == 0 {
		return ""
	}
	s := "detected:"
	for _, p := range agg.Patterns {
		s += " " + p.ID
	}
	return s
}
