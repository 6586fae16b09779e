package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anomaly-monitor/internal/analytics"
	"anomaly-monitor/internal/cache"
	"anomaly-monitor/internal/classifier"
	"anomaly-monitor/internal/collector"
	"anomaly-monitor/internal/eventlog"
	"anomaly-monitor/internal/explain"
	"anomaly-monitor/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const DefaultInterval = 5 * time.Second

// DiskTopApp is logged as the top app for disk anomalies; per-process disk
// usage is not sampled.
const DiskTopApp = "Disk IO"

type Stage string

const (
	StageSampling    Stage = "sampling"
	StageDetecting   Stage = "detecting"
	StageClassifying Stage = "classifying"
	StageExplaining  Stage = "explaining"
	StageLogging     Stage = "logging"
)

// TickError records the stage a tick was abandoned in.
type TickError struct {
	Stage Stage
	Err   error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *TickError) Unwrap() error {
	return e.Err
}

// TickResult is the outcome of one tick. Entry is only meaningful when Err
// is nil.
type TickResult struct {
	Entry models.LogEntry
	Err   *TickError
}

// Mirror receives best-effort copies of logged entries and detector alerts.
type Mirror interface {
	StoreEntry(ctx context.Context, entry models.LogEntry) error
	PushAlert(ctx context.Context, alert cache.Alert) error
}

type Options struct {
	Profile  Profile
	Interval time.Duration

	Provider   collector.Provider
	Store      eventlog.Store
	Detector   analytics.ThresholdDetector
	Addresses  *analytics.AddressTracker
	PortScans  *analytics.PortScanTracker
	Classifier classifier.Classifier
	Explainer  *explain.Generator
	Stats      *analytics.Stats
	Mirror     Mirror
	Metrics    *Metrics
	Logger     zerolog.Logger

	// Now is the tick clock; defaults to time.Now.
	Now func() time.Time
}

// Loop runs one tick at a time. It owns the tracker state and the store.
type Loop struct {
	profile    Profile
	interval   time.Duration
	provider   collector.Provider
	store      eventlog.Store
	detector   analytics.ThresholdDetector
	addresses  *analytics.AddressTracker
	portScans  *analytics.PortScanTracker
	classifier classifier.Classifier
	explainer  *explain.Generator
	stats      *analytics.Stats
	mirror     Mirror
	metrics    *Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

func NewLoop(opts Options) (*Loop, error) {
	if opts.Provider == nil {
		return nil, errors.New("monitor: provider is required")
	}
	if opts.Store == nil {
		return nil, errors.New("monitor: store is required")
	}

	l := &Loop{
		profile:    opts.Profile,
		interval:   opts.Interval,
		provider:   opts.Provider,
		store:      opts.Store,
		detector:   opts.Detector,
		addresses:  opts.Addresses,
		portScans:  opts.PortScans,
		classifier: opts.Classifier,
		explainer:  opts.Explainer,
		stats:      opts.Stats,
		mirror:     opts.Mirror,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With().Str("component", "monitor").Str("profile", opts.Profile.Name).Logger(),
		now:        opts.Now,
	}

	if l.interval <= 0 {
		l.interval = DefaultInterval
	}
	if l.detector == (analytics.ThresholdDetector{}) {
		l.detector = analytics.NewThresholdDetector()
	}
	if l.addresses == nil {
		l.addresses = analytics.NewAddressTracker()
	}
	if l.portScans == nil {
		l.portScans = analytics.NewPortScanTracker(analytics.DefaultPortScanThreshold)
	}
	if l.classifier == nil || !l.profile.Classify {
		l.classifier = classifier.Disabled{}
	}
	if l.explainer == nil {
		l.explainer = explain.NewGenerator(nil, opts.Logger)
	}
	if l.stats == nil {
		l.stats = analytics.NewStats(l.profile.Name, 0)
	}
	if l.metrics == nil {
		l.metrics = NewMetrics(prometheus.NewRegistry())
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l, nil
}

func (l *Loop) Stats() *analytics.Stats {
	return l.stats
}

// Run ticks until ctx is cancelled. The interval is measured from the end
// of one tick to the start of the next.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info().Dur("interval", l.interval).Msg("starting anomaly detection loop")

	for {
		if ctx.Err() != nil {
			l.logger.Info().Msg("monitoring loop stopped")
			return
		}

		l.Tick(ctx)

		timer := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.logger.Info().Msg("monitoring loop stopped")
			return
		case <-timer.C:
		}
	}
}

// Tick runs one sampling-to-logging pass. Every failure, panics included,
// is contained here; a failed tick appends nothing.
func (l *Loop) Tick(ctx context.Context) (res TickResult) {
	start := time.Now()
	stage := StageSampling

	defer func() {
		if r := recover(); r != nil {
			res = TickResult{Err: &TickError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}}
		}
		l.finish(res, time.Since(start))
	}()

	fail := func(err error) TickResult {
		return TickResult{Err: &TickError{Stage: stage, Err: err}}
	}

	// The log stores whole seconds; every copy of the entry carries the same
	// timestamp.
	ts := l.now().Truncate(time.Second)
	snapshot, err := l.provider.Snapshot(ctx)
	if err != nil {
		return fail(err)
	}
	var (
		addrs []string
		conns []models.Connection
	)
	if l.profile.Network {
		if addrs, err = l.provider.InterfaceAddresses(ctx); err != nil {
			return fail(err)
		}
		if conns, err = l.provider.Connections(ctx); err != nil {
			return fail(err)
		}
	}

	stage = StageDetecting
	var verdict models.AnomalyVerdict
	if l.profile.Thresholds {
		verdict = l.detector.Classify(snapshot)
	}

	stage = StageClassifying
	result, classifyErr := l.classifier.Classify(classifier.Synthesize(snapshot, l.profile.Features))
	if classifyErr != nil {
		l.metrics.ClassifierFailures.Inc()
		l.logger.Warn().Err(classifyErr).Msg("classifier inference failed, using fallback label")
	}

	top, hasTop := topApp(snapshot, verdict)

	var explanation string
	if verdict.IsAnomalous {
		stage = StageExplaining
		tc := explain.TickContext{Snapshot: snapshot, Verdict: verdict, Classification: result}
		if hasTop {
			tc.TopApp = top
		}
		exp := l.explainer.Explain(ctx, tc)
		if exp.NarrativeErr != nil {
			l.metrics.NarrativeFailures.Inc()
		}
		explanation = exp.Text
	}
	if classifyErr != nil {
		explanation = joinSentences(explanation, fmt.Sprintf("Classifier unavailable for this tick (%v); prediction defaulted to normal/unknown.", classifyErr))
	}

	stage = StageLogging
	entry := models.LogEntry{
		Timestamp:       ts,
		CPU:             snapshot.CPUPercent,
		Memory:          snapshot.MemoryPercent,
		Disk:            snapshot.DiskPercent,
		Anomaly:         verdict.IsAnomalous,
		AnomalyType:     verdict.Kind.String(),
		Severity:        verdict.Severity.String(),
		TopAppName:      models.NoneLabel,
		Explanation:     explanation,
		ModelPrediction: int(result.Binary),
		ModelClass:      result.Multiclass,
	}
	if hasTop {
		entry.TopAppName = top.Name
	}
	if err := l.store.Append(entry); err != nil {
		return fail(err)
	}

	// Trackers only advance for ticks that reached the log.
	if l.profile.Network {
		l.reportAddresses(ctx, ts, l.addresses.Observe(addrs))
		l.reportScans(ctx, ts, l.portScans.Observe(conns))
	}
	l.gauge(snapshot)
	return TickResult{Entry: entry}
}

// finish records the tick outcome. Only logged entries reach the stats and
// the mirror.
func (l *Loop) finish(res TickResult, elapsed time.Duration) {
	l.metrics.TickDuration.Observe(elapsed.Seconds())

	if res.Err != nil {
		l.stats.RecordFailure()
		l.metrics.Ticks.WithLabelValues(l.profile.Name, string(res.Err.Stage)).Inc()
		l.logger.Error().Str("stage", string(res.Err.Stage)).Err(res.Err.Err).Msg("error during monitoring")
		return
	}

	l.metrics.Ticks.WithLabelValues(l.profile.Name, "logged").Inc()
	l.stats.Record(res.Entry)

	e := res.Entry
	if e.Anomaly {
		l.metrics.Anomalies.WithLabelValues(e.AnomalyType).Inc()
		l.logger.Warn().
			Str("anomaly_type", e.AnomalyType).
			Str("severity", e.Severity).
			Str("top_app", e.TopAppName).
			Msg("anomaly detected")
	}
	l.logger.Debug().
		Float64("cpu", e.CPU).
		Float64("memory", e.Memory).
		Float64("disk", e.Disk).
		Int("model_prediction", e.ModelPrediction).
		Str("model_class", e.ModelClass).
		Msg("tick logged")

	if l.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.mirror.StoreEntry(ctx, e); err != nil {
			l.logger.Warn().Err(err).Msg("failed to mirror entry")
		}
	}
}

func (l *Loop) reportAddresses(ctx context.Context, ts time.Time, fresh []string) {
	for _, addr := range fresh {
		l.metrics.NewAddresses.Inc()
		l.logger.Warn().Str("address", addr).Msg("new IP detected")
		l.pushAlert(ctx, cache.Alert{Timestamp: ts, Kind: "new_address", Address: addr})
	}
}

func (l *Loop) reportScans(ctx context.Context, ts time.Time, alerts []models.ScanAlert) {
	for _, a := range alerts {
		l.metrics.PortScanAlerts.Inc()
		l.logger.Warn().Str("alert", a.String()).Msg("port scan activity")
		l.pushAlert(ctx, cache.Alert{Timestamp: ts, Kind: "port_scan", Address: a.Address, Hits: a.Hits})
	}
}

func (l *Loop) pushAlert(ctx context.Context, alert cache.Alert) {
	if l.mirror == nil {
		return
	}
	if err := l.mirror.PushAlert(ctx, alert); err != nil {
		l.logger.Warn().Err(err).Str("kind", alert.Kind).Msg("failed to mirror alert")
	}
}

func (l *Loop) gauge(s models.MetricsSnapshot) {
	l.metrics.CPUPercent.Set(s.CPUPercent)
	l.metrics.MemoryPercent.Set(s.MemoryPercent)
	l.metrics.DiskPercent.Set(s.DiskPercent)
}

// topApp picks the heaviest process for the verdict's metric. Non-anomalous
// ticks report the top memory consumer.
func topApp(s models.MetricsSnapshot, v models.AnomalyVerdict) (models.ProcessUsage, bool) {
	switch v.Kind {
	case models.KindHighCPU:
		return s.TopCPU()
	case models.KindHighDisk:
		return models.ProcessUsage{Name: DiskTopApp}, true
	default:
		return s.TopMemory()
	}
}

func joinSentences(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}
