package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mempirate/electionjobs/failure"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.True(t, failure.Is(err, failure.KindConfig))
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, "/var/lib/electionjobs", cfg.DataDir)
			assert.Equal(t, "/var/lib/electionjobs/jobs.csv", cfg.DatasetPath())
			assert.Equal(t, 3, cfg.Years)
			assert.Equal(t, 4, cfg.EnrichConcurrency)
			assert.Equal(t, 45*time.Minute, cfg.RunTimeout)
			assert.Equal(t, 20*time.Second, cfg.Fetch.Timeout)
			assert.Equal(t, 5, cfg.Fetch.Retries)
			assert.Equal(t, "gpt-4o", cfg.Model.Name)
			assert.EqualValues(t, 2, cfg.Model.MaxRetries)
			assert.False(t, cfg.Model.Classify)
			assert.False(t, cfg.FullText.Enabled)
			assert.Equal(t, []string{"Center for Tech and Civic Life"}, cfg.Exclusions.Employers)
			assert.Equal(t, []string{"example-vendor.com"}, cfg.Exclusions.Domains)
			assert.Equal(t, "sheet-123", cfg.Sheets.SpreadsheetID)

			// Unset keys keep their defaults.
			assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
			assert.Equal(t, 60*time.Second, cfg.Model.Timeout)
			assert.Equal(t, "model-cache.db", cfg.Model.CacheFile)

			require.NoError(t, cfg.Validate())
		})
	}
}

func TestLoadDefaultPathMissing(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load(DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Sheets.SpreadsheetID = "sheet-123"
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "no data dir", mutate: func(c *Config) { c.DataDir = "" }, errString: "data_dir is required"},
		{name: "zero years", mutate: func(c *Config) { c.Years = 0 }, errString: "years must be at least 1"},
		{name: "zero concurrency", mutate: func(c *Config) { c.EnrichConcurrency = 0 }, errString: "enrich_concurrency"},
		{name: "zero timeout", mutate: func(c *Config) { c.RunTimeout = 0 }, errString: "run_timeout"},
		{name: "negative retries", mutate: func(c *Config) { c.Fetch.Retries = -1 }, errString: "retries"},
		{name: "no spreadsheet", mutate: func(c *Config) { c.Sheets.SpreadsheetID = "" }, errString: "spreadsheet_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
			assert.True(t, failure.IsFatal(err))
		})
	}
}

func TestLoadSecrets(t *testing.T) {
	creds := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{"type":"service_account"}`), 0o600))

	t.Run("from environment", func(t *testing.T) {
		t.Setenv(EnvOpenAIKey, "sk-test")
		t.Setenv(EnvGoogleCredentials, creds)
		t.Setenv(EnvSlackToken, "")

		cfg := Default()
		require.NoError(t, cfg.LoadSecrets(filepath.Join(t.TempDir(), ".env")))
		assert.Equal(t, "sk-test", cfg.Secrets.OpenAIKey)
		assert.Equal(t, creds, cfg.Secrets.GoogleCredentials)
		assert.Empty(t, cfg.Secrets.SlackToken)
	})

	t.Run("from env file", func(t *testing.T) {
		t.Setenv(EnvOpenAIKey, "")
		t.Setenv(EnvGoogleCredentials, "")
		// godotenv never overrides variables that are already set, even when
		// empty, so unset them for the duration of the test.
		require.NoError(t, os.Unsetenv(EnvOpenAIKey))
		require.NoError(t, os.Unsetenv(EnvGoogleCredentials))

		envFile := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(envFile, []byte("OPENAI_API_KEY=sk-file\nGOOGLE_APPLICATION_CREDENTIALS="+creds+"\n"), 0o600))
		t.Cleanup(func() {
			_ = os.Unsetenv(EnvOpenAIKey)
			_ = os.Unsetenv(EnvGoogleCredentials)
		})

		cfg := Default()
		require.NoError(t, cfg.LoadSecrets(envFile))
		assert.Equal(t, "sk-file", cfg.Secrets.OpenAIKey)
	})

	t.Run("missing key", func(t *testing.T) {
		t.Setenv(EnvOpenAIKey, "")
		t.Setenv(EnvGoogleCredentials, creds)

		err := Default().LoadSecrets("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), EnvOpenAIKey)
		assert.True(t, failure.Is(err, failure.KindConfig))
	})

	t.Run("unreadable credentials", func(t *testing.T) {
		t.Setenv(EnvOpenAIKey, "sk-test")
		t.Setenv(EnvGoogleCredentials, filepath.Join(t.TempDir(), "missing.json"))

		err := Default().LoadSecrets("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), EnvGoogleCredentials)
	})
}

func TestWindowYears(t *testing.T) {
	cfg := Default()
	cfg.Years = 3
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []int{2022, 2023, 2024}, cfg.WindowYears(now))
}
