// Package config loads the YAML configuration shared by the aggregator,
// coordinator, and client binaries, generalizing the teacher's
// federation.FLPlan (pkg/federation/plan.go) to the secure-aggregation
// protocol.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TLSConfig mirrors the teacher's security.TLSConfig, scoped to
// transport-level HTTPS/mTLS. It never authenticates a ClientID — identity
// auth is assumed to be handled upstream of this protocol.
type TLSConfig struct {
	Enabled          bool   `yaml:"enabled"`
	CertPath         string `yaml:"cert_path"`
	KeyPath          string `yaml:"key_path"`
	CAPath           string `yaml:"ca_path"`
	ServerName       string `yaml:"server_name"`
	InsecureSkipTLS  bool   `yaml:"insecure_skip_tls"`
	AutoGenerateCert bool   `yaml:"auto_generate_cert"`
}

// Plan is the shared configuration document for a secure-aggregation run.
type Plan struct {
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Training   TrainingConfig   `yaml:"training"`
	Security   TLSConfig        `yaml:"security"`
}

// AggregatorConfig configures the HTTP aggregation server.
type AggregatorConfig struct {
	Address       string `yaml:"address"`
	FeatureWeight int    `yaml:"feature_weight"`
}

// TrainingConfig configures round coordination and the mask secret shared
// out-of-band between clients. Secret MUST be replaced with a genuine
// shared secret in production.
type TrainingConfig struct {
	Secret           string        `yaml:"secret"`
	Rounds           int           `yaml:"rounds"`
	MinClients       int           `yaml:"min_clients"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	RoundTimeout     time.Duration `yaml:"round_timeout"`
	Samples          int           `yaml:"samples"`
	Epochs           int           `yaml:"epochs"`
	LearningRate     float64       `yaml:"learning_rate"`
	BaseSeed         int64         `yaml:"base_seed"`
}

// Default returns the configuration matching the binaries' documented CLI
// flag defaults.
func Default() *Plan {
	return &Plan{
		Aggregator: AggregatorConfig{
			Address:       "0.0.0.0:8000",
			FeatureWeight: 12,
		},
		Training: TrainingConfig{
			Secret:       "",
			Rounds:       30,
			MinClients:   3,
			PollInterval: 500 * time.Millisecond,
			RoundTimeout: 120 * time.Second,
			Samples:      300,
			Epochs:       1,
			LearningRate: 0.5,
			BaseSeed:     1234,
		},
	}
}

// Load reads a YAML plan file, starting from Default() so unset fields
// keep their documented defaults.
func Load(path string) (*Plan, error) {
	plan := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, plan); err != nil {
		return nil, err
	}

	return plan, nil
}
