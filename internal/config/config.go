package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Bandit      BanditConfig      `yaml:"bandit" mapstructure:"bandit"`
	Reward      RewardConfig      `yaml:"reward" mapstructure:"reward"`
	Attribution AttributionConfig `yaml:"attribution" mapstructure:"attribution"`
	Timing      TimingConfig      `yaml:"timing" mapstructure:"timing"`
	Budget      BudgetConfig      `yaml:"budget" mapstructure:"budget"`
	Learn       LearnConfig       `yaml:"learn" mapstructure:"learn"`
	Seeds       []SeedArm         `yaml:"seeds" mapstructure:"seeds"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BanditConfig configures arm selection.
type BanditConfig struct {
	// Policy is one of thompson, ucb, epsilon_greedy.
	Policy string `yaml:"policy" mapstructure:"policy"`
	// Epsilon is the exploration floor applied regardless of posterior rank.
	Epsilon float64 `yaml:"epsilon" mapstructure:"epsilon"`
	// MinSamples is the trial count below which an arm is cold-start.
	MinSamples int `yaml:"min_samples" mapstructure:"min_samples"`
	// WilsonZ is the z-value for reported confidence bounds.
	WilsonZ float64 `yaml:"wilson_z" mapstructure:"wilson_z"`
	// Seed fixes the sampler RNG when non-zero; 0 seeds from the clock.
	Seed uint64 `yaml:"seed" mapstructure:"seed"`
}

// RewardConfig holds the composite reward weights. The splits come from the
// bot's original operation, not controlled experiments, so they stay tunable.
type RewardConfig struct {
	FollowerWeight   float64 `yaml:"follower_weight" mapstructure:"follower_weight"`
	EngagementWeight float64 `yaml:"engagement_weight" mapstructure:"engagement_weight"`
	ReachWeight      float64 `yaml:"reach_weight" mapstructure:"reach_weight"`
	ConversionWeight float64 `yaml:"conversion_weight" mapstructure:"conversion_weight"`
}

// AttributionConfig configures outcome attribution and reward application.
type AttributionConfig struct {
	// LowConfidenceWeight down-weights low-confidence rewards before they
	// reach arm statistics.
	LowConfidenceWeight float64 `yaml:"low_confidence_weight" mapstructure:"low_confidence_weight"`
	// SuccessThreshold is the reward above which an applied update counts as
	// a full success; below it, a fractional success reward/100 is credited.
	SuccessThreshold float64 `yaml:"success_threshold" mapstructure:"success_threshold"`
	// ViralMultiplier flags a post viral when likes reach this multiple of
	// the trailing 7-day average.
	ViralMultiplier float64 `yaml:"viral_multiplier" mapstructure:"viral_multiplier"`
}

// TimingConfig configures the posting-window optimizer.
type TimingConfig struct {
	// SuccessThreshold is the engagement count above which a bucket update
	// counts as a success.
	SuccessThreshold    float64 `yaml:"success_threshold" mapstructure:"success_threshold"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	MinSamples          int     `yaml:"min_samples" mapstructure:"min_samples"`
}

// TierConfig describes one AI model cost tier.
type TierConfig struct {
	Name        string  `yaml:"name" mapstructure:"name"`
	CostPerCall float64 `yaml:"cost_per_call" mapstructure:"cost_per_call"`
}

// BudgetConfig configures budget-aware model selection.
type BudgetConfig struct {
	MonthlyBudget float64      `yaml:"monthly_budget" mapstructure:"monthly_budget"`
	Ceiling       float64      `yaml:"ceiling" mapstructure:"ceiling"`
	Tiers         []TierConfig `yaml:"tiers" mapstructure:"tiers"`
}

// LearnConfig configures the learning loop orchestrator.
type LearnConfig struct {
	BatchLimit       int           `yaml:"batch_limit" mapstructure:"batch_limit"`
	ApplyConcurrency int           `yaml:"apply_concurrency" mapstructure:"apply_concurrency"`
	Every            time.Duration `yaml:"every" mapstructure:"every"`
	MaxRunDuration   time.Duration `yaml:"max_run_duration" mapstructure:"max_run_duration"`
}

// SeedArm pre-registers an arm at startup so cold-start callers have
// eligible arms before any outcome has been observed.
type SeedArm struct {
	ID       string            `yaml:"id" mapstructure:"id"`
	Type     string            `yaml:"type" mapstructure:"type"`
	Features map[string]string `yaml:"features" mapstructure:"features"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port      int     `yaml:"port" mapstructure:"port"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DECIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "decider.db")
	v.SetDefault("bandit.policy", "thompson")
	v.SetDefault("bandit.epsilon", 0.1)
	v.SetDefault("bandit.min_samples", 3)
	v.SetDefault("bandit.wilson_z", 1.96)
	v.SetDefault("reward.follower_weight", 0.5)
	v.SetDefault("reward.engagement_weight", 0.25)
	v.SetDefault("reward.reach_weight", 0.15)
	v.SetDefault("reward.conversion_weight", 0.10)
	v.SetDefault("attribution.low_confidence_weight", 0.5)
	v.SetDefault("attribution.success_threshold", 50)
	v.SetDefault("attribution.viral_multiplier", 2.0)
	v.SetDefault("timing.success_threshold", 10)
	v.SetDefault("timing.confidence_threshold", 0.3)
	v.SetDefault("timing.min_samples", 3)
	v.SetDefault("budget.monthly_budget", 100.0)
	v.SetDefault("budget.ceiling", 0.9)
	v.SetDefault("learn.batch_limit", 500)
	v.SetDefault("learn.apply_concurrency", 4)
	v.SetDefault("learn.every", time.Hour)
	v.SetDefault("learn.max_run_duration", 10*time.Minute)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if len(cfg.Budget.Tiers) == 0 {
		cfg.Budget.Tiers = DefaultTiers()
	}

	return &cfg, nil
}

// Validate checks configuration required for the given command mode.
// Errors name the offending key so operators can fix config.yaml directly.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Bandit.Epsilon < 0 || c.Bandit.Epsilon > 1 {
		problems = append(problems, "bandit.epsilon must be between 0 and 1")
	}
	if c.Bandit.MinSamples < 1 {
		problems = append(problems, "bandit.min_samples must be >= 1")
	}
	switch c.Bandit.Policy {
	case "thompson", "ucb", "epsilon_greedy":
	default:
		problems = append(problems, "bandit.policy must be thompson, ucb, or epsilon_greedy")
	}
	for _, w := range []struct {
		name string
		val  float64
	}{
		{"reward.follower_weight", c.Reward.FollowerWeight},
		{"reward.engagement_weight", c.Reward.EngagementWeight},
		{"reward.reach_weight", c.Reward.ReachWeight},
		{"reward.conversion_weight", c.Reward.ConversionWeight},
	} {
		if w.val < 0 {
			problems = append(problems, w.name+" must be >= 0")
		}
	}
	if c.Budget.Ceiling <= 0 || c.Budget.Ceiling > 1 {
		problems = append(problems, "budget.ceiling must be in (0, 1]")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "learn":
		if c.Learn.BatchLimit < 1 {
			problems = append(problems, "learn.batch_limit must be >= 1")
		}
		if c.Learn.ApplyConcurrency < 1 {
			problems = append(problems, "learn.apply_concurrency must be >= 1")
		}
	case "cli":
		// no extra requirements
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// DefaultTiers returns the default model cost tiers, cheapest first.
func DefaultTiers() []TierConfig {
	return []TierConfig{
		{Name: "haiku", CostPerCall: 0.01},
		{Name: "sonnet", CostPerCall: 0.05},
		{Name: "opus", CostPerCall: 0.25},
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
