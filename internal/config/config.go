// Package config loads operational settings from an optional
// partnerscan.yaml, PARTNERSCAN_* environment variables and command-line
// flags, in increasing order of precedence. Rule policy is separate.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lisaapatel/partnerscan/internal/fetch"
)

const (
	DefaultConfigDir   = ".partnerscan"
	DefaultConfigName  = "partnerscan"
	EnvPrefix          = "PARTNERSCAN"
	DefaultPolicyFile  = "policy.yml"
	DefaultURLsFile    = "urls.txt"
	DefaultEvidenceDir = "evidence"
	DefaultReportCSV   = "report.csv"
	DefaultReportHTML  = "report.html"
	DefaultRateLimit   = 500 * time.Millisecond
)

// Config holds the operational settings of a run.
type Config struct {
	Policy       string        `mapstructure:"policy"`
	URLs         string        `mapstructure:"urls"`
	PacksDir     string        `mapstructure:"packs_dir"`
	EvidenceDir  string        `mapstructure:"evidence_dir"`
	ReportCSV    string        `mapstructure:"report_csv"`
	ReportHTML   string        `mapstructure:"report_html"`
	UserAgent    string        `mapstructure:"user_agent"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	RateLimit    time.Duration `mapstructure:"rate_limit"`
	HistoryDB    string        `mapstructure:"history_db"`
	ScanLog      string        `mapstructure:"scan_log"`
	MetricsFile  string        `mapstructure:"metrics_file"`
	ChromePath   string        `mapstructure:"chrome_path"`
	Schedule     string        `mapstructure:"schedule"`

	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// NewViper returns a viper instance with defaults and environment
// bindings. Callers bind flags on top before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("policy", DefaultPolicyFile)
	v.SetDefault("urls", DefaultURLsFile)
	v.SetDefault("packs_dir", "")
	v.SetDefault("evidence_dir", DefaultEvidenceDir)
	v.SetDefault("report_csv", DefaultReportCSV)
	v.SetDefault("report_html", DefaultReportHTML)
	v.SetDefault("user_agent", fetch.DefaultUserAgent)
	v.SetDefault("fetch_timeout", fetch.DefaultTimeout)
	v.SetDefault("rate_limit", DefaultRateLimit)
	v.SetDefault("history_db", "")
	v.SetDefault("scan_log", "")
	v.SetDefault("metrics_file", "")
	v.SetDefault("chrome_path", "")
	v.SetDefault("schedule", "")
}

// Load reads configPath into v and decodes the result. With an empty
// configPath, partnerscan.yaml is looked up in the working directory and
// then in ~/.partnerscan; not finding one is not an error.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must not be negative")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = fetch.DefaultTimeout
	}
	return &cfg, nil
}
