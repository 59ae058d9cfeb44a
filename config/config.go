package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mempirate/electionjobs/failure"
)

const (
	DefaultPath       = "config.yaml"
	DefaultDataDir    = "data"
	DefaultBaseURL    = "https://electionline.org"
	DefaultRunTimeout = 30 * time.Minute
)

// Environment variables holding secrets.
const (
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvGoogleCredentials = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvFirecrawlKey      = "FIRECRAWL_API_KEY"
	EnvSlackToken        = "SLACK_BOT_TOKEN"
)

// Config represents the complete application configuration
type Config struct {
	// DataDir holds the issue mirror, scraped descriptions and the model cache.
	DataDir string `yaml:"data_dir"`
	// Dataset is the CSV file. Relative paths are resolved against DataDir.
	Dataset string `yaml:"dataset"`
	BaseURL string `yaml:"base_url"`
	// Years is how many years, counting back from the current one, are fetched
	// and processed on each run.
	Years int `yaml:"years"`

	EnrichConcurrency int           `yaml:"enrich_concurrency"`
	RunTimeout        time.Duration `yaml:"run_timeout"`
	LogLevel          string        `yaml:"log_level"`

	Fetch      FetchConfig      `yaml:"fetch"`
	Model      ModelConfig      `yaml:"model"`
	FullText   FullTextConfig   `yaml:"full_text"`
	Exclusions ExclusionsConfig `yaml:"exclusions"`
	Sheets     SheetsConfig     `yaml:"sheets"`
	Slack      SlackConfig      `yaml:"slack"`

	Secrets Secrets `yaml:"-"`
}

type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
	UserAgent string        `yaml:"user_agent"`
}

type ModelConfig struct {
	Name           string        `yaml:"name"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     uint64        `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	// CacheFile is relative to DataDir unless absolute. Empty disables the cache.
	CacheFile string `yaml:"cache_file"`
	// Classify enables the experimental role classification.
	Classify bool `yaml:"classify"`
}

type FullTextConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
	Retries           int           `yaml:"retries"`
}

type ExclusionsConfig struct {
	// Employers are case-insensitive substrings of the posting text.
	Employers []string `yaml:"employers"`
	// Domains are matched against the posting link host and its parents.
	Domains []string `yaml:"domains"`
}

type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id"`
}

type SlackConfig struct {
	Channel string `yaml:"channel"`
}

// Secrets are read from the environment, never from the config file.
type Secrets struct {
	OpenAIKey         string
	GoogleCredentials string
	FirecrawlKey      string
	SlackToken        string
}

// Default returns the configuration used for anything the file leaves unset.
func Default() *Config {
	return &Config{
		DataDir:           DefaultDataDir,
		Dataset:           "electionline_weekly.csv",
		BaseURL:           DefaultBaseURL,
		Years:             2,
		EnrichConcurrency: 1,
		RunTimeout:        DefaultRunTimeout,
		LogLevel:          "info",
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
			Retries: 3,
		},
		Model: ModelConfig{
			Name:           "gpt-4o-mini",
			Timeout:        60 * time.Second,
			MaxRetries:     3,
			InitialBackoff: time.Second,
			CacheFile:      "model-cache.db",
			Classify:       true,
		},
		FullText: FullTextConfig{
			Enabled:           true,
			RequestsPerSecond: 1,
			Timeout:           10 * time.Second,
			Retries:           2,
		},
		Exclusions: ExclusionsConfig{
			Domains: []string{
				"dominionvoting.com",
				"clearballot.com",
				"electioninnovation.org",
				"runbeck.net",
				"rockthevote.com",
				"hartintercivic.com",
				"fordfoundation.org",
				"techandciviclife.org",
				"bipartisanpolicy.org",
				"cdt.org",
				"ericstates.org",
				"centerfortechandciviclife.recruitee.com",
				"democracy.works",
				"electionreformers.org",
				"verifiedvoting.org",
			},
		},
	}
}

// Load reads the configuration file on top of the defaults. A missing file
// at the default path yields the defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) && configPath == DefaultPath {
			return cfg, nil
		}
		return nil, failure.Config("failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, failure.Config("failed to parse config file", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return failure.Config("data_dir is required", nil)
	}

	if c.Dataset == "" {
		return failure.Config("dataset is required", nil)
	}

	if c.Years < 1 {
		return failure.Config("years must be at least 1", nil)
	}

	if c.EnrichConcurrency < 1 {
		return failure.Config("enrich_concurrency must be at least 1", nil)
	}

	if c.RunTimeout <= 0 {
		return failure.Config("run_timeout must be greater than 0", nil)
	}

	if c.Fetch.Retries < 0 || c.FullText.Retries < 0 {
		return failure.Config("retries must not be negative", nil)
	}

	if c.FullText.RequestsPerSecond < 0 {
		return failure.Config("full_text.requests_per_second must not be negative", nil)
	}

	if c.Sheets.SpreadsheetID == "" {
		return failure.Config("sheets.spreadsheet_id is required", nil)
	}

	return nil
}

// LoadSecrets reads secrets from the environment after loading envFile, if
// it exists. Variables already set take precedence over the file.
func (c *Config) LoadSecrets(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return failure.Config("failed to load "+envFile, err)
		}
	}

	c.Secrets = Secrets{
		OpenAIKey:         os.Getenv(EnvOpenAIKey),
		GoogleCredentials: os.Getenv(EnvGoogleCredentials),
		FirecrawlKey:      os.Getenv(EnvFirecrawlKey),
		SlackToken:        os.Getenv(EnvSlackToken),
	}

	return c.Secrets.Validate()
}

// Validate checks that the required secrets are present and the Google
// credentials file is readable.
func (s *Secrets) Validate() error {
	if s.OpenAIKey == "" {
		return failure.Config(EnvOpenAIKey+" is not set", nil)
	}

	if s.GoogleCredentials == "" {
		return failure.Config(EnvGoogleCredentials+" is not set", nil)
	}

	f, err := os.Open(s.GoogleCredentials)
	if err != nil {
		return failure.Config("cannot read "+EnvGoogleCredentials, err)
	}
	f.Close()

	return nil
}

// Path resolves p against the data directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// DatasetPath is the resolved location of the CSV dataset.
func (c *Config) DatasetPath() string {
	return c.Path(c.Dataset)
}

// MirrorDir is where issue pages are mirrored.
func (c *Config) MirrorDir() string {
	return filepath.Join(c.DataDir, "electionline-weekly")
}

// WindowYears returns the years to process, oldest first, ending at now.
func (c *Config) WindowYears(now time.Time) []int {
	years := make([]int, 0, c.Years)
	for y := now.Year() - c.Years + 1; y <= now.Year(); y++ {
		years = append(years, y)
	}
	return years
}
