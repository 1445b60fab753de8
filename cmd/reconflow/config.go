package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kbukum/reconflow/api"
	"github.com/kbukum/reconflow/config"
	"github.com/kbukum/reconflow/observability"
	"github.com/kbukum/reconflow/orchestrator"
	"github.com/kbukum/reconflow/profile"
	"github.com/kbukum/reconflow/recon"
	"github.com/kbukum/reconflow/resilience"
)

const serviceName = "reconflow"

// Config is the reconflow process configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Policy        PolicyConfig          `yaml:"policy" mapstructure:"policy"`
	Executor      ExecutorConfig        `yaml:"executor" mapstructure:"executor"`
	Classifier    ClassifierConfig      `yaml:"classifier" mapstructure:"classifier"`
	Recon         recon.Settings        `yaml:"recon" mapstructure:"recon"`
	Batch         BatchConfig           `yaml:"batch" mapstructure:"batch"`
	Tasks         map[string]TaskConfig `yaml:"tasks" mapstructure:"tasks"`
	Observability observability.Config  `yaml:"observability" mapstructure:"observability"`
	API           api.Config            `yaml:"api" mapstructure:"api"`
}

// PolicyConfig locates the routing policy file.
type PolicyConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// ExecutorConfig tunes the DAG executor.
type ExecutorConfig struct {
	TaskTimeout  time.Duration `yaml:"task_timeout" mapstructure:"task_timeout"`
	DecisionTask string        `yaml:"decision_task" mapstructure:"decision_task"`
	DecisionKey  string        `yaml:"decision_key" mapstructure:"decision_key"`
}

// ClassifierConfig overrides the classifier tier thresholds.
type ClassifierConfig struct {
	Thresholds profile.Thresholds `yaml:"thresholds" mapstructure:"thresholds"`
}

// Rules returns the default classifier rules with configured thresholds.
func (c ClassifierConfig) Rules() profile.Rules {
	rules := profile.DefaultRules()
	if c.Thresholds != (profile.Thresholds{}) {
		rules.Thresholds = c.Thresholds
	}
	return rules
}

// BatchConfig bounds batch concurrency.
type BatchConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// TaskConfig holds per-task middleware settings.
type TaskConfig struct {
	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// Task returns the settings for name. Keys are matched case-insensitively
// since the config loader lowercases map keys.
func (c *Config) Task(name string) TaskConfig {
	for k, v := range c.Tasks {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return TaskConfig{}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	if c.Policy.File == "" {
		c.Policy.File = "policies/routing_policies.yaml"
	}
	if c.Recon == (recon.Settings{}) {
		c.Recon = recon.DefaultSettings()
	}
	if c.Batch.Workers == 0 {
		c.Batch.Workers = orchestrator.DefaultWorkers
	}
	c.Observability.ApplyDefaults()
	c.API.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if c.Executor.TaskTimeout < 0 {
		return fmt.Errorf("executor.task_timeout must be non-negative (got: %s)", c.Executor.TaskTimeout)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must be non-negative (got: %d)", c.Batch.Workers)
	}
	if err := c.Classifier.Rules().Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if err := c.Recon.Validate(); err != nil {
		return fmt.Errorf("recon: %w", err)
	}
	for name := range c.Tasks {
		if !slices.Contains(recon.TaskNames, strings.ToUpper(name)) {
			return fmt.Errorf("tasks.%s: unknown task", name)
		}
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	return nil
}

func loadConfig(opts ...config.LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
