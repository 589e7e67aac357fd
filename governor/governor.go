package governor

import (
	"context"
	"fmt"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/yunusovt983/adaptivegov/config"
	"github.com/yunusovt983/adaptivegov/profiler"
	"github.com/yunusovt983/adaptivegov/telemetry"
)

var log = logging.Logger("adaptivegov/governor")

// BudgetController is the external budget collaborator. Failures from it
// are logged and never block a settings transition.
type BudgetController interface {
	ConfigureForPerformanceClass(ctx context.Context, class profiler.PerformanceClass) error
	ResetAllBudgets(ctx context.Context) error
}

// CacheController is the slice of a cache the governor drives: capacity
// reconfiguration and emergency clearing. *cache.Cache implements it.
type CacheController interface {
	Resize(itemLimit int, byteLimit int64)
	Clear()
}

// MultiplierConsumer receives the SLA multiplier of newly applied
// settings.
type MultiplierConsumer interface {
	SetSLAMultiplier(multiplier float64)
}

// Transition records one applied settings change.
type Transition struct {
	From      Tier
	To        Tier
	Reason    string
	Class     profiler.PerformanceClass
	Throttled bool
	At        time.Time
}

// Governor owns the single current OptimizationSettings. It runs a
// cancellable control loop that re-profiles the device, decides whether
// the operating tier must change and applies new settings atomically to
// every registered collaborator.
type Governor struct {
	cfg    config.GovernorConfig
	prof   *profiler.Profiler
	budget BudgetController
	sink   telemetry.Sink
	mtr    *telemetry.Metrics

	// applyMu serializes settings transitions end to end, including the
	// collaborator callouts, so a manual call and a loop tick never
	// interleave.
	applyMu sync.Mutex

	mu          sync.RWMutex
	settings    OptimizationSettings
	profile     profiler.DeviceProfile
	haveProfile bool
	caches      []CacheController
	consumers   []MultiplierConsumer
	history     []Transition
	subscribers []chan Transition
	running     bool
	stop        chan struct{}
	done        chan struct{}
}

// New creates a governor starting in the conservative tier. budget and
// sink may be nil.
func New(cfg config.GovernorConfig, prof *profiler.Profiler, budget BudgetController, sink telemetry.Sink, mtr *telemetry.Metrics) *Governor {
	if sink == nil {
		sink = telemetry.Nop()
	}
	return &Governor{
		cfg:      cfg,
		prof:     prof,
		budget:   budget,
		sink:     sink,
		mtr:      mtr,
		settings: SettingsForTier(TierConservative),
	}
}

// RegisterCache adds a cache for the governor to reconfigure on every
// settings change. The current capacity policy is applied immediately.
func (g *Governor) RegisterCache(c CacheController) {
	g.mu.Lock()
	g.caches = append(g.caches, c)
	s := g.settings
	g.mu.Unlock()

	c.Resize(s.CacheItemLimit, s.CacheByteLimit)
}

// RegisterMultiplierConsumer adds a consumer notified of the SLA
// multiplier on every settings change.
func (g *Governor) RegisterMultiplierConsumer(mc MultiplierConsumer) {
	g.mu.Lock()
	g.consumers = append(g.consumers, mc)
	s := g.settings
	g.mu.Unlock()

	mc.SetSLAMultiplier(s.SLAMultiplier)
}

// Subscribe returns a channel receiving applied transitions. The channel
// is closed when the governor stops.
func (g *Governor) Subscribe() <-chan Transition {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch := make(chan Transition, 16)
	g.subscribers = append(g.subscribers, ch)
	return ch
}

// StartOptimization launches the background control loop.
func (g *Governor) StartOptimization(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return fmt.Errorf("governor is already running")
	}
	g.running = true
	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	stop, done := g.stop, g.done
	g.mu.Unlock()

	go g.loop(ctx, stop, done)

	log.Infow("optimization loop started",
		"interval", g.cfg.ProfileInterval, "error_backoff", g.cfg.ErrorBackoff)
	return nil
}

// StopOptimization cancels the control loop and waits for it to observe
// the cancellation. It is idempotent; stopping an already-stopped
// governor is a no-op. Manual one-shot operations already in flight are
// allowed to finish before the subscriber channels close.
func (g *Governor) StopOptimization() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	close(g.stop)
	done := g.done
	g.mu.Unlock()

	<-done

	// An in-flight apply holds applyMu across its fan-out, including the
	// subscriber sends. Taking it here, after the loop has exited, means
	// no sender can still hold a channel we are about to close. applyMu
	// must not be taken before <-done or a loop iteration blocked on it
	// would never reach the stop signal.
	g.applyMu.Lock()
	g.mu.Lock()
	subs := g.subscribers
	g.subscribers = nil
	g.mu.Unlock()
	g.applyMu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
	log.Info("optimization loop stopped")
}

func (g *Governor) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		delay := g.cfg.ProfileInterval
		if err := g.RefreshAndOptimize(ctx); err != nil {
			// Degraded telemetry read: retry on the longer backoff, the
			// loop itself never terminates on error.
			log.Warnw("profiling degraded, backing off", "error", err, "backoff", g.cfg.ErrorBackoff)
			delay = g.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-time.After(delay):
		}
	}
}

// RefreshAndOptimize performs one synchronous profile-and-adjust cycle.
// The returned error reports a degraded telemetry read; no adjustment is
// made in that case.
func (g *Governor) RefreshAndOptimize(ctx context.Context) error {
	p, err := g.prof.ProfileChecked(ctx)
	if err != nil {
		return err
	}
	g.evaluate(ctx, p)
	return nil
}

// evaluate decides the target tier for the profile and applies it if it
// differs from the current one. Critical thermal conditions bypass the
// normal mapping and force the emergency bundle.
func (g *Governor) evaluate(ctx context.Context, p profiler.DeviceProfile) {
	g.applyMu.Lock()
	defer g.applyMu.Unlock()

	g.mu.Lock()
	g.profile = p
	g.haveProfile = true
	current := g.settings.Tier
	g.mu.Unlock()

	target := TierForProfile(p)
	emergency := p.Thermal == profiler.ThermalCritical
	if emergency {
		target = TierEmergency
	}

	if target == current {
		return
	}

	reason := "profile"
	if emergency {
		reason = "thermal_emergency"
	}
	g.applySettings(ctx, SettingsForTier(target), reason, p.Class(), p.Throttled(), emergency)
}

// SetOptimizationLevel applies a manual tier override. The override
// persists until the next automatic transition decision recomputes the
// tier. Unknown tiers and the emergency pseudo-tier are rejected and not
// applied.
func (g *Governor) SetOptimizationLevel(ctx context.Context, t Tier) {
	if !t.valid() || t == TierEmergency {
		log.Warnw("rejecting invalid manual optimization level", "tier", int(t))
		return
	}

	g.applyMu.Lock()
	defer g.applyMu.Unlock()

	g.mu.RLock()
	current := g.settings.Tier
	profile, haveProfile := g.profile, g.haveProfile
	g.mu.RUnlock()

	if t == current {
		return
	}

	class := classForTier(t)
	throttled := haveProfile && profile.Throttled()
	g.applySettings(ctx, SettingsForTier(t), "manual", class, throttled, false)
}

// applySettings swaps in the new settings and fans the change out to all
// collaborators. Callers hold applyMu, so transitions are strictly
// ordered; g.mu is released before the callouts so no collaborator runs
// under a governor lock.
func (g *Governor) applySettings(ctx context.Context, next OptimizationSettings, reason string, class profiler.PerformanceClass, throttled bool, emergency bool) {
	g.mu.Lock()
	prev := g.settings
	g.settings = next

	tr := Transition{
		From:      prev.Tier,
		To:        next.Tier,
		Reason:    reason,
		Class:     class,
		Throttled: throttled,
		At:        time.Now(),
	}
	g.history = append(g.history, tr)
	if len(g.history) > g.cfg.HistorySize {
		g.history = g.history[len(g.history)-g.cfg.HistorySize:]
	}

	caches := make([]CacheController, len(g.caches))
	copy(caches, g.caches)
	consumers := make([]MultiplierConsumer, len(g.consumers))
	copy(consumers, g.consumers)
	subscribers := make([]chan Transition, len(g.subscribers))
	copy(subscribers, g.subscribers)
	g.mu.Unlock()

	for _, c := range caches {
		c.Resize(next.CacheItemLimit, next.CacheByteLimit)
	}

	if g.budget != nil {
		var err error
		if emergency {
			err = g.budget.ResetAllBudgets(ctx)
		} else {
			err = g.budget.ConfigureForPerformanceClass(ctx, class)
		}
		if err != nil {
			log.Errorw("budget reconfiguration failed",
				"tier", next.Tier.String(), "error", err)
		}
	}

	for _, mc := range consumers {
		mc.SetSLAMultiplier(next.SLAMultiplier)
	}

	g.mtr.ObserveTier(int(next.Tier))
	if emergency {
		g.mtr.ObserveEmergency()
	}

	eventType := telemetry.EventTierChange
	if emergency {
		eventType = telemetry.EventEmergencyThrottle
	}
	g.sink.Publish(telemetry.Event{
		Type:    eventType,
		Message: fmt.Sprintf("optimization tier changed from %s to %s", prev.Tier, next.Tier),
		Fields: map[string]interface{}{
			"from":      prev.Tier.String(),
			"to":        next.Tier.String(),
			"reason":    reason,
			"class":     class.String(),
			"throttled": throttled,
		},
		Timestamp: tr.At,
	})

	for _, ch := range subscribers {
		select {
		case ch <- tr:
		default:
			// Subscriber is lagging, drop rather than stall a transition.
		}
	}

	log.Infow("applied optimization settings",
		"from", prev.Tier.String(),
		"to", next.Tier.String(),
		"reason", reason,
		"cache_items", next.CacheItemLimit,
		"max_concurrent", next.MaxConcurrentOps,
		"refresh_interval", next.RefreshInterval)
}

// Settings returns the current optimization settings. The feature map is
// copied so callers cannot mutate the published bundle.
func (g *Governor) Settings() OptimizationSettings {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := g.settings
	features := make(map[Feature]bool, len(s.EnabledFeatures))
	for f, on := range s.EnabledFeatures {
		features[f] = on
	}
	s.EnabledFeatures = features
	return s
}

// IsFeatureEnabled reports whether a feature is on under the current
// settings.
func (g *Governor) IsFeatureEnabled(f Feature) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.settings.Enabled(f)
}

// Profile returns the most recent device profile observed by the
// governor.
func (g *Governor) Profile() (profiler.DeviceProfile, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.profile, g.haveProfile
}

// History returns a copy of the retained transition history, oldest
// first.
func (g *Governor) History() []Transition {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Transition, len(g.history))
	copy(out, g.history)
	return out
}

func classForTier(t Tier) profiler.PerformanceClass {
	switch t {
	case TierHighPerformance:
		return profiler.ClassHigh
	case TierBalanced:
		return profiler.ClassMedium
	default:
		return profiler.ClassLow
	}
}
