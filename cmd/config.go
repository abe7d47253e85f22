package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/simdynlb/simdynlb/sim"
)

// FileConfig is the simulation context file. JSON files are accepted too,
// since JSON is a subset of YAML.
// Pointer fields are required: nil means the key was missing.
// All keys must be listed to satisfy KnownFields(true) strict parsing.
type FileConfig struct {
	BalancingOverhead *int64   `yaml:"balancing_overhead"`
	MigrationDelay    *int64   `yaml:"migration_delay"`
	NumRanks          *int     `yaml:"num_ranks"`
	NumSlowRanks      *int     `yaml:"num_slow_ranks"`
	Slowdown          *float64 `yaml:"slowdown"`
	TasksPerRank      *int     `yaml:"tasks_per_rank"`
	ClockRate         *float64 `yaml:"clock_rate"`
	Iterations        *int     `yaml:"iterations"`
	Noise             *int64   `yaml:"noise"`

	Policy             string            `yaml:"policy"`
	Seed               int64             `yaml:"seed"`
	Latency            *int64            `yaml:"latency"`
	MinStealQueue      *int              `yaml:"min_steal_queue"`
	MinOffloadQueue    *int              `yaml:"min_offload_queue"`
	MinAbsLoadDiff     *int              `yaml:"min_abs_load_diff"`
	ImbalanceThreshold *float64          `yaml:"imbalance_threshold"`
	ProtectedHeadTasks *int              `yaml:"protected_head_tasks"`
	LocalStartOffset   *int64            `yaml:"local_start_offset"`
	Horizon            int64             `yaml:"horizon"`
	Plan               sim.MigrationPlan `yaml:"plan"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the value of VAR. Unset or empty
// variables are left as written so the parse error names them.
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.Trim(match, "${}")
		if value := os.Getenv(name); value != "" {
			return value
		}
		return match
	})
}

// ParseConfig decodes a context file and checks that every required key is present.
func ParseConfig(r io.Reader) (*FileConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var fc FileConfig
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expandEnvVars(string(data)))))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config: empty document")
		}
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := fc.checkRequired(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// LoadConfig reads and parses the context file at path.
func LoadConfig(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()
	return ParseConfig(f)
}

func (fc *FileConfig) checkRequired() error {
	var err error
	missing := func(key string, isNil bool) {
		if isNil {
			err = multierr.Append(err, fmt.Errorf("missing required key %q", key))
		}
	}
	missing("balancing_overhead", fc.BalancingOverhead == nil)
	missing("migration_delay", fc.MigrationDelay == nil)
	missing("num_ranks", fc.NumRanks == nil)
	missing("num_slow_ranks", fc.NumSlowRanks == nil)
	missing("slowdown", fc.Slowdown == nil)
	missing("tasks_per_rank", fc.TasksPerRank == nil)
	missing("clock_rate", fc.ClockRate == nil)
	missing("iterations", fc.Iterations == nil)
	missing("noise", fc.Noise == nil)
	return err
}

// SimConfig converts the file into an engine configuration, filling in
// defaults for optional keys. The result is not validated.
func (fc *FileConfig) SimConfig() sim.SimConfig {
	cfg := sim.DefaultSimConfig()
	if fc.Policy != "" {
		cfg.Policy = sim.Policy(fc.Policy)
	}
	cfg.Topology = sim.TopologyConfig{
		NumRanks:     *fc.NumRanks,
		NumSlowRanks: *fc.NumSlowRanks,
		Slowdown:     *fc.Slowdown,
		TasksPerRank: *fc.TasksPerRank,
		ClockRate:    *fc.ClockRate,
	}
	cfg.Costs = sim.CostConfig{
		BalancingOverhead: *fc.BalancingOverhead,
		MigrationDelay:    *fc.MigrationDelay,
		Noise:             *fc.Noise,
	}
	cfg.Seed = fc.Seed
	cfg.Iterations = *fc.Iterations
	cfg.Horizon = fc.Horizon
	cfg.Plan = fc.Plan

	b := &cfg.Balancer
	setInt64(&b.Latency, fc.Latency)
	setInt(&b.MinStealQueue, fc.MinStealQueue)
	setInt(&b.MinOffloadQueue, fc.MinOffloadQueue)
	setInt(&b.MinAbsLoadDiff, fc.MinAbsLoadDiff)
	setInt(&b.ProtectedHeadTasks, fc.ProtectedHeadTasks)
	if fc.ImbalanceThreshold != nil {
		b.ImbalanceThreshold = *fc.ImbalanceThreshold
	}
	setInt64(&cfg.LocalStartOffset, fc.LocalStartOffset)
	return cfg
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setInt64(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}
