package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pyama86/YARO/domain/entity"
	"github.com/spf13/viper"
)

func NewConfigRepository(path string) (*Config, error) {
	viper.SetConfigFile(path)

	viper.AutomaticEnv()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("policy.confidence_floor", 0.7)
	viper.SetDefault("policy.risk_ceilings.P1", 0.3)
	viper.SetDefault("policy.risk_ceilings.P2", 0.5)
	viper.SetDefault("policy.risk_ceilings.P3", 0.7)
	viper.SetDefault("policy.risk_ceilings.P4", 0.85)
	viper.SetDefault("policy.dispatch_retries", 3)
	viper.SetDefault("runner.poll_interval_seconds", 2)
	viper.SetDefault("runner.job_timeout_seconds", 300)
	viper.SetDefault("runner.validation_timeout_seconds", 330)
	viper.SetDefault("servicenow.poll_interval_seconds", 30)
	viper.SetDefault("servicenow.batch_size", 5)
	viper.SetDefault("api.address", "127.0.0.1:8080")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	var c Config
	err = viper.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	valid := validator.New()
	if err = valid.Struct(c); err != nil {
		return nil, fmt.Errorf("validate config error: %w", err)
	}

	if c.Runner.ValidationTimeoutSeconds <= c.Runner.JobTimeoutSeconds {
		return nil, fmt.Errorf("runner.validation_timeout_seconds (%d) must exceed runner.job_timeout_seconds (%d)",
			c.Runner.ValidationTimeoutSeconds, c.Runner.JobTimeoutSeconds)
	}

	return &c, nil
}

type Config struct {
	PlaybookList       []entity.PlaybookTemplate `mapstructure:"playbooks" validate:"required"`
	ClassifierRuleList []entity.ClassifierRule   `mapstructure:"classifier_rules"`
	Policy             PolicyConfig              `mapstructure:"policy"`
	Runner             RunnerConfig              `mapstructure:"runner"`
	ServiceNow         ServiceNowConfig          `mapstructure:"servicenow"`
	Slack              SlackConfig               `mapstructure:"slack"`
	Confluence         ConfluenceConfig          `mapstructure:"confluence"`
	API                APIConfig                 `mapstructure:"api"`
}

type PolicyConfig struct {
	ConfidenceFloor float64            `mapstructure:"confidence_floor" validate:"gte=0,lte=1"`
	RiskCeilings    map[string]float64 `mapstructure:"risk_ceilings"`
	DispatchRetries uint               `mapstructure:"dispatch_retries"`
}

type RunnerConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" validate:"gt=0"`
	JobTimeoutSeconds   int `mapstructure:"job_timeout_seconds" validate:"gt=0"`
	// must exceed job_timeout_seconds so the job tracker gives up first
	ValidationTimeoutSeconds int `mapstructure:"validation_timeout_seconds" validate:"gt=0"`
}

func (r RunnerConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalSeconds) * time.Second
}

func (r RunnerConfig) JobTimeout() time.Duration {
	return time.Duration(r.JobTimeoutSeconds) * time.Second
}

func (r RunnerConfig) ValidationTimeout() time.Duration {
	return time.Duration(r.ValidationTimeoutSeconds) * time.Second
}

type ServiceNowConfig struct {
	AssignmentGroup     string `mapstructure:"assignment_group"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds" validate:"gt=0"`
	BatchSize           int    `mapstructure:"batch_size" validate:"gt=0"`
}

type SlackConfig struct {
	AlertChannel string `mapstructure:"alert_channel"`
}

type ConfluenceConfig struct {
	AncestorID string `mapstructure:"ancestor_id"`
	Space      string `mapstructure:"space"`
	Domain     string `mapstructure:"domain"`
}

type APIConfig struct {
	Address string `mapstructure:"address"`
}

func (c *Config) Playbooks(_ context.Context) ([]entity.PlaybookTemplate, error) {
	var playbooks []entity.PlaybookTemplate
	for _, playbook := range c.PlaybookList {
		if playbook.Disabled {
			continue
		}
		playbooks = append(playbooks, playbook)
	}
	return playbooks, nil
}

func (c *Config) ClassifierRules(_ context.Context) []entity.ClassifierRule {
	var rules []entity.ClassifierRule
	for _, rule := range c.ClassifierRuleList {
		if rule.Disabled {
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}

func (c *Config) ConfidenceFloor() float64 {
	return c.Policy.ConfidenceFloor
}

// RiskCeiling returns the maximum effective risk score a plan may carry to
// stay eligible for autonomous remediation at the given severity.
func (c *Config) RiskCeiling(severity entity.Severity) float64 {
	if ceiling, ok := c.ceiling(string(severity)); ok {
		return ceiling
	}
	// unknown severities get the strictest gate
	ceiling, _ := c.ceiling(string(entity.SeverityP1))
	return ceiling
}

// viper lowercases configuration keys, so the map may carry "p1" or "P1"
// depending on where the value came from.
func (c *Config) ceiling(key string) (float64, bool) {
	if v, ok := c.Policy.RiskCeilings[key]; ok {
		return v, true
	}
	v, ok := c.Policy.RiskCeilings[strings.ToLower(key)]
	return v, ok
}
