package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"faturas/apiclient"
	"faturas/model"
)

type Config struct {
	ShowBrowser bool   `json:"showBrowser"`
	BrowserBin  string `json:"browserBin"`

	// Periods is a comma-separated list such as "2025/09,2025/10".
	Periods          string `json:"periods"`
	InactiveCutoff   string `json:"inactiveCutoff"`
	StartAccountCode string `json:"startAccountCode"`

	OutputDir    string `json:"outputDir"`
	AccountsFile string `json:"accountsFile"`
	DBPath       string `json:"dbPath"`
	ListenAddr   string `json:"listenAddr"`
	LogLevel     string `json:"logLevel"`

	MaxAttempts         int     `json:"maxAttempts"`
	TimeoutSeconds      int     `json:"timeoutSeconds"`
	InitialDelaySeconds float64 `json:"initialDelaySeconds"`
	BackoffFactor       float64 `json:"backoffFactor"`
	MaxDelaySeconds     float64 `json:"maxDelaySeconds"`
	EnableBreaker       bool    `json:"enableBreaker"`
	RequestsPerSecond   float64 `json:"requestsPerSecond"`

	LoginSettleSeconds int `json:"loginSettleSeconds"`
	FieldWaitSeconds   int `json:"fieldWaitSeconds"`
}

var (
	cfg Config
	mu  sync.RWMutex
)

var configFilePath = "./faturas_config.json"

// Defaults returns the configuration used when no file exists.
func Defaults() Config {
	return Config{
		OutputDir:           "./faturas",
		AccountsFile:        "./contas.csv",
		DBPath:              "./faturas.db",
		ListenAddr:          ":8080",
		LogLevel:            "info",
		MaxAttempts:         3,
		TimeoutSeconds:      90,
		InitialDelaySeconds: 5,
		BackoffFactor:       1.5,
		MaxDelaySeconds:     30,
		LoginSettleSeconds:  5,
		FieldWaitSeconds:    20,
	}
}

// LoadConfig reads the config file, fills unset fields with defaults and
// applies FATURAS_* environment overrides (a .env file is honoured). When
// the file exists but cannot be read or parsed, the in-memory config falls
// back to defaults plus overrides, the error is returned and the file is
// left untouched.
func LoadConfig() (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	loaded := Defaults()
	var loadErr error
	file, err := os.ReadFile(configFilePath)
	switch {
	case err == nil:
		if err := json.Unmarshal(file, &loaded); err != nil {
			loaded = Defaults()
			loadErr = fmt.Errorf("parse %s: %w", configFilePath, err)
		}
	case !os.IsNotExist(err):
		loadErr = fmt.Errorf("read %s: %w", configFilePath, err)
	}

	_ = godotenv.Load()
	applyEnv(&loaded)
	applyDefaults(&loaded)

	cfg = loaded
	return cfg, loadErr
}

func SaveConfig(newCfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	applyDefaults(&newCfg)

	file, err := json.MarshalIndent(newCfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(configFilePath, file, 0644); err != nil {
		return err
	}
	cfg = newCfg
	return nil
}

func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Validate checks the fields a run depends on. At least one period must be
// requested.
func (c Config) Validate() error {
	periods, err := c.RequestedPeriods()
	if err != nil {
		return err
	}
	if len(periods) == 0 {
		return fmt.Errorf("periods: at least one period is required")
	}
	if _, err := c.Cutoff(); err != nil {
		return err
	}
	return nil
}

func (c Config) RequestedPeriods() ([]model.Period, error) {
	periods, err := model.ParsePeriodList(c.Periods)
	if err != nil {
		return nil, fmt.Errorf("periods: %w", err)
	}
	return periods, nil
}

// Cutoff returns the inactivity cutoff; an empty value disables the check.
func (c Config) Cutoff() (model.Period, error) {
	if strings.TrimSpace(c.InactiveCutoff) == "" {
		return model.Period{}, nil
	}
	p, err := model.ParsePeriod(c.InactiveCutoff)
	if err != nil {
		return model.Period{}, fmt.Errorf("inactive cutoff: %w", err)
	}
	return p, nil
}

func (c Config) RetryPolicy() apiclient.Policy {
	p := apiclient.DefaultPolicy()
	p.MaxAttempts = c.MaxAttempts
	p.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	p.InitialDelay = seconds(c.InitialDelaySeconds)
	p.BackoffFactor = c.BackoffFactor
	p.MaxDelay = seconds(c.MaxDelaySeconds)
	p.BreakerEnabled = c.EnableBreaker
	p.RequestsPerSecond = c.RequestsPerSecond
	return p
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func applyDefaults(c *Config) {
	def := Defaults()
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.AccountsFile == "" {
		c.AccountsFile = def.AccountsFile
	}
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = def.TimeoutSeconds
	}
	if c.InitialDelaySeconds <= 0 {
		c.InitialDelaySeconds = def.InitialDelaySeconds
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = def.BackoffFactor
	}
	if c.MaxDelaySeconds <= 0 {
		c.MaxDelaySeconds = def.MaxDelaySeconds
	}
	if c.LoginSettleSeconds <= 0 {
		c.LoginSettleSeconds = def.LoginSettleSeconds
	}
	if c.FieldWaitSeconds <= 0 {
		c.FieldWaitSeconds = def.FieldWaitSeconds
	}
}

func applyEnv(c *Config) {
	if v, ok := envBool("FATURAS_HEADLESS"); ok {
		c.ShowBrowser = !v
	}
	envString("FATURAS_BROWSER_BIN", &c.BrowserBin)
	envString("FATURAS_PERIODS", &c.Periods)
	envString("FATURAS_INACTIVE_CUTOFF", &c.InactiveCutoff)
	envString("FATURAS_START_ACCOUNT", &c.StartAccountCode)
	envString("FATURAS_OUTPUT_DIR", &c.OutputDir)
	envString("FATURAS_ACCOUNTS_FILE", &c.AccountsFile)
	envString("FATURAS_DB_PATH", &c.DBPath)
	envString("FATURAS_LISTEN_ADDR", &c.ListenAddr)
	envString("FATURAS_LOG_LEVEL", &c.LogLevel)
	if v, ok := envBool("FATURAS_ENABLE_BREAKER"); ok {
		c.EnableBreaker = v
	}
	if v := strings.TrimSpace(os.Getenv("FATURAS_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("FATURAS_REQUESTS_PER_SECOND")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RequestsPerSecond = f
		}
	}
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envBool(key string) (bool, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return parsed, true
}
