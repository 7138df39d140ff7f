package config

import "pipeval/internal/spec"

// Defaults applied by Normalize.
const (
	DefaultLedgerPath       = ".pipeval/ledger.json"
	DefaultBacklogPath      = ".pipeval/backlog.json"
	DefaultAnalyticsDBPath  = ".pipeval/analytics.duckdb"
	DefaultTimeoutSeconds   = 60
	DefaultMaxAttempts      = 5
	DefaultBackoffBaseMS    = 1000
	DefaultBackoffCapMS     = 30000
	DefaultPlateauPP        = 1.0
	DefaultStableIterations = 3
	DefaultDropTolerancePP  = 2.0
)

// Normalize fills in defaults for omitted fields.
func Normalize(cfg *spec.Config) {
	if cfg.Store.LedgerPath == "" {
		cfg.Store.LedgerPath = DefaultLedgerPath
	}
	if cfg.Store.BacklogPath == "" {
		cfg.Store.BacklogPath = DefaultBacklogPath
	}
	if cfg.Analytics.Enabled && cfg.Analytics.DBPath == "" {
		cfg.Analytics.DBPath = DefaultAnalyticsDBPath
	}
	if cfg.Client.TimeoutSeconds <= 0 {
		cfg.Client.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if cfg.Client.MaxAttempts <= 0 {
		cfg.Client.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Client.BackoffBaseMS <= 0 {
		cfg.Client.BackoffBaseMS = DefaultBackoffBaseMS
	}
	if cfg.Client.BackoffCapMS <= 0 {
		cfg.Client.BackoffCapMS = DefaultBackoffCapMS
	}
	if cfg.Analysis.PlateauPP <= 0 {
		cfg.Analysis.PlateauPP = DefaultPlateauPP
	}
	if cfg.Gate.StableIterations <= 0 {
		cfg.Gate.StableIterations = DefaultStableIterations
	}
	if cfg.Gate.DropTolerancePP <= 0 {
		cfg.Gate.DropTolerancePP = DefaultDropTolerancePP
	}
	pipelines := map[string]spec.PipelineConfig{}
	for _, pipelineCfg := range cfg.Pipelines {
		pipelines[pipelineCfg.Name] = pipelineCfg
	}
	for i := range cfg.Phases {
		for j := range cfg.Phases[i].Criteria {
			criterion := &cfg.Phases[i].Criteria[j]
			switch criterion.Kind {
			case spec.CriterionStability:
				if criterion.Iterations <= 0 {
					criterion.Iterations = cfg.Gate.StableIterations
				}
			case spec.CriterionLatencyP95:
				// Criteria without their own ceiling inherit the pipeline's.
				if criterion.CeilingMS <= 0 {
					criterion.CeilingMS = pipelines[criterion.Pipeline].LatencyCeilingMS
				}
			case spec.CriterionErrorRate:
				if criterion.Ceiling == 0 {
					if ceiling := pipelines[criterion.Pipeline].ErrorRateCeiling; ceiling != nil {
						criterion.Ceiling = *ceiling
					}
				}
			}
		}
	}
}
