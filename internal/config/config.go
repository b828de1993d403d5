// Package config loads the four YAML documents that describe a deployment:
// app config, node inventory, profile definitions, and check thresholds.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/ttone18/gpu-inspector/internal/models"
)

// AppConfig is the top-level app_config.yaml document.
type AppConfig struct {
	SQLitePath string `yaml:"sqlite_path"`

	MySQLDSN     string `yaml:"mysql_dsn"`
	MySQLEnabled bool   `yaml:"mysql_enabled"`

	WebhookURLs map[models.Group]string `yaml:"webhook_urls"`

	// TableSyncWebhookURL is a separate tabular-record-sync endpoint, not a
	// chat group — every NEW/CHANGED failure the alert engine dispatches is
	// mirrored there in addition to whichever chat group its priority routes
	// to. P3 failures are recorded without a dispatch and are not mirrored.
	TableSyncWebhookURL string `yaml:"table_sync_webhook_url"`

	MaxWorkers int `yaml:"max_workers"`

	IntervalGPU     time.Duration `yaml:"interval_gpu"`
	IntervalSystem  time.Duration `yaml:"interval_system"`
	IntervalNetwork time.Duration `yaml:"interval_network"`
	IntervalStorage time.Duration `yaml:"interval_storage"`

	DigestTime     string `yaml:"digest_time"`     // "HH:MM", local time
	DigestTimezone string `yaml:"digest_timezone"` // IANA zone name

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// nodesDoc is the shape of nodes.yaml.
type nodesDoc struct {
	Nodes []models.NodeSpec `yaml:"nodes"`
}

// profilesDoc is the shape of profiles.yaml.
type profilesDoc struct {
	Profiles map[string]profileDoc `yaml:"profiles"`
}

type profileDoc struct {
	Tasks map[models.TaskClass][]string `yaml:"tasks"`
}

// thresholdsDoc is the shape of thresholds.yaml.
type thresholdsDoc struct {
	Thresholds models.Thresholds `yaml:"thresholds"`
}

// Bundle is everything loaded from the four config documents plus env
// overrides applied on top of AppConfig.
type Bundle struct {
	App        AppConfig
	Nodes      []models.NodeSpec
	Profiles   map[string]models.Profile
	Thresholds models.Thresholds
}

// Paths names the four config files on disk.
type Paths struct {
	AppConfig  string
	Nodes      string
	Profiles   string
	Thresholds string
}

// DefaultPaths returns the conventional configs/ layout.
func DefaultPaths(dir string) Paths {
	if dir == "" {
		dir = "configs"
	}
	return Paths{
		AppConfig:  dir + "/app_config.yaml",
		Nodes:      dir + "/nodes.yaml",
		Profiles:   dir + "/profiles.yaml",
		Thresholds: dir + "/thresholds.yaml",
	}
}

// Load reads and merges all four documents, then applies GPU_INSPECTOR_*
// environment overrides on top of AppConfig. A missing optional file
// (nodes/profiles/thresholds) falls back to an empty default with a warning;
// a missing or malformed app_config.yaml is a fatal error.
func Load(paths Paths) (Bundle, error) {
	var app AppConfig
	if err := loadYAMLRequired(paths.AppConfig, &app); err != nil {
		return Bundle{}, fmt.Errorf("load app config %s: %w", paths.AppConfig, err)
	}
	applyAppDefaults(&app)
	applyEnvOverrides(&app)

	var nodes nodesDoc
	if err := loadYAMLOptional(paths.Nodes, &nodes); err != nil {
		return Bundle{}, fmt.Errorf("load nodes %s: %w", paths.Nodes, err)
	}

	var profilesRaw profilesDoc
	if err := loadYAMLOptional(paths.Profiles, &profilesRaw); err != nil {
		return Bundle{}, fmt.Errorf("load profiles %s: %w", paths.Profiles, err)
	}
	profiles := make(map[string]models.Profile, len(profilesRaw.Profiles))
	for name, doc := range profilesRaw.Profiles {
		profiles[name] = models.Profile{Name: name, Tasks: doc.Tasks}
	}

	var thresholdsRaw thresholdsDoc
	if err := loadYAMLOptional(paths.Thresholds, &thresholdsRaw); err != nil {
		return Bundle{}, fmt.Errorf("load thresholds %s: %w", paths.Thresholds, err)
	}
	if thresholdsRaw.Thresholds == nil {
		thresholdsRaw.Thresholds = models.Thresholds{}
	}

	return Bundle{
		App:        app,
		Nodes:      nodes.Nodes,
		Profiles:   profiles,
		Thresholds: thresholdsRaw.Thresholds,
	}, nil
}

func applyAppDefaults(app *AppConfig) {
	if app.SQLitePath == "" {
		app.SQLitePath = "gpu_inspector.db"
	}
	if app.MaxWorkers <= 0 {
		app.MaxWorkers = 5
	}
	if app.IntervalGPU <= 0 {
		app.IntervalGPU = 30 * time.Second
	}
	if app.IntervalSystem <= 0 {
		app.IntervalSystem = 10 * time.Minute
	}
	if app.IntervalNetwork <= 0 {
		app.IntervalNetwork = 5 * time.Minute
	}
	if app.IntervalStorage <= 0 {
		app.IntervalStorage = 10 * time.Minute
	}
	if app.DigestTime == "" {
		app.DigestTime = "09:00"
	}
	if app.DigestTimezone == "" {
		app.DigestTimezone = "UTC"
	}
	if app.LogLevel == "" {
		app.LogLevel = "info"
	}
	if app.LogFormat == "" {
		app.LogFormat = "auto"
	}
}

// applyEnvOverrides mirrors the teacher's env-first-then-flag convention,
// adapted to override an already-loaded file config rather than a flag set.
func applyEnvOverrides(app *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("GPU_INSPECTOR_SQLITE_PATH")); v != "" {
		app.SQLitePath = v
	}
	if v := strings.TrimSpace(os.Getenv("GPU_INSPECTOR_MYSQL_DSN")); v != "" {
		app.MySQLDSN = v
		app.MySQLEnabled = true
	}
	if v := strings.TrimSpace(os.Getenv("GPU_INSPECTOR_MAX_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			app.MaxWorkers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GPU_INSPECTOR_LOG_LEVEL")); v != "" {
		app.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("GPU_INSPECTOR_LOG_FORMAT")); v != "" {
		app.LogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("GPU_INSPECTOR_DIGEST_TIME")); v != "" {
		app.DigestTime = v
	}
}

func loadYAMLRequired(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func loadYAMLOptional(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("config file not found, using defaults")
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, out)
}
