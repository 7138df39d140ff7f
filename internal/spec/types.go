package spec

// Config is the root pipeval configuration schema.
type Config struct {
	Version   int              `yaml:"version"`
	Store     StoreConfig      `yaml:"store"`
	Pipelines []PipelineConfig `yaml:"pipelines"`
	Dataset   string           `yaml:"dataset"`
	Match     MatchConfig      `yaml:"match"`
	Client    ClientConfig     `yaml:"client"`
	Analysis  AnalysisConfig   `yaml:"analysis"`
	Gate      GateConfig       `yaml:"gate"`
	Phases    []PhaseConfig    `yaml:"phases"`
	Analytics AnalyticsConfig  `yaml:"analytics"`
}

// StoreConfig locates the durable stores.
type StoreConfig struct {
	LedgerPath  string `yaml:"ledger_path"`
	BacklogPath string `yaml:"backlog_path"`
}

// PipelineConfig describes one pipeline under test and its targets. The
// latency and error-rate ceilings are inherited by latency_p95 and error_rate
// phase criteria that do not set their own.
type PipelineConfig struct {
	Name             string   `yaml:"name"`
	Endpoint         string   `yaml:"endpoint"`
	AccuracyTarget   float64  `yaml:"accuracy_target"`
	LatencyCeilingMS int64    `yaml:"latency_ceiling_ms"`
	ErrorRateCeiling *float64 `yaml:"error_rate_ceiling"`
}

// MatchConfig tunes the answer matcher.
type MatchConfig struct {
	F1Threshold float64 `yaml:"f1_threshold"`
}

// ClientConfig tunes the pipeline client.
type ClientConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxAttempts    int `yaml:"max_attempts"`
	BackoffBaseMS  int `yaml:"backoff_base_ms"`
	BackoffCapMS   int `yaml:"backoff_cap_ms"`
}

// AnalysisConfig tunes the regression and gap analyzer.
type AnalysisConfig struct {
	PlateauPP float64 `yaml:"plateau_pp"`
}

// GateConfig tunes stability detection for phase gates.
type GateConfig struct {
	StableIterations int     `yaml:"stable_iterations"`
	DropTolerancePP  float64 `yaml:"drop_tolerance_pp"`
}

// PhaseConfig declares one named phase gate.
type PhaseConfig struct {
	Number        int               `yaml:"number"`
	Name          string            `yaml:"name"`
	RequiresPhase *int              `yaml:"requires_phase"`
	Criteria      []CriterionConfig `yaml:"criteria"`
}

// CriterionConfig declares one pass/fail criterion inside a phase.
type CriterionConfig struct {
	Kind       string  `yaml:"kind"`
	Pipeline   string  `yaml:"pipeline"`
	Threshold  float64 `yaml:"threshold"`
	CeilingMS  int64   `yaml:"ceiling_ms"`
	Ceiling    float64 `yaml:"ceiling"`
	Iterations int     `yaml:"iterations"`
}

// AnalyticsConfig controls the DuckDB mirror.
type AnalyticsConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// Criterion kinds accepted in phase definitions.
const (
	CriterionPipelineAccuracy = "pipeline_accuracy"
	CriterionOverallAccuracy  = "overall_accuracy"
	CriterionLatencyP95       = "latency_p95"
	CriterionErrorRate        = "error_rate"
	CriterionStability        = "stability"
)
