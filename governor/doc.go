// Package governor implements the closed-loop performance governor at the
// center of the adaptive governance subsystem.
//
// The governor periodically profiles the host through the profiler
// package, maps the profile to one of three named operating tiers
// (high-performance, balanced, conservative) and applies the tier's
// settings bundle atomically to every registered collaborator: caches are
// resized, the external budget collaborator is reconfigured for the new
// performance class and SLA-multiplier consumers are notified. A
// throttled host (thermal pressure, low-power mode or low battery) always
// maps to the conservative tier; critical thermal conditions bypass the
// normal mapping entirely and force the emergency bundle, which disables
// every optional feature and shrinks caches to their smallest size.
//
// # Usage Example
//
//	prov := mySensorProvider{}
//	prof := profiler.NewProfiler(prov)
//	gov := governor.New(config.DefaultConfig().Governor, prof, budget, telemetry.NewLogSink(), nil)
//
//	c := cache.New[string, []byte](ctx, 500, 32<<20)
//	gov.RegisterCache(c)
//
//	if err := gov.StartOptimization(ctx); err != nil {
//		return err
//	}
//	defer gov.StopOptimization()
//
//	if gov.IsFeatureEnabled(governor.FeaturePrefetch) {
//		// ...
//	}
package governor
