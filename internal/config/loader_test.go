package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goran-ethernal/BountyIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAML(t *testing.T) {
	cfg, err := LoadFromYAML("../../config.example.yaml")
	require.NoError(t, err)

	validateConfig(t, cfg, "YAML")
	require.Equal(t, "debug", cfg.Logging.GetComponentLevel("processor"))
	require.Equal(t, "info", cfg.Logging.GetComponentLevel("store"))
	require.NotNil(t, cfg.ProofVerifier)
}

func TestLoadFromJSON(t *testing.T) {
	cfg, err := LoadFromJSON("../../config.example.json")
	require.NoError(t, err)

	validateConfig(t, cfg, "JSON")
}

func TestLoadFromTOML(t *testing.T) {
	cfg, err := LoadFromTOML("../../config.example.toml")
	require.NoError(t, err)

	validateConfig(t, cfg, "TOML")
	require.Equal(t, "finalized", cfg.Indexer.Finality)
	require.Zero(t, cfg.Indexer.FinalityConfirmations)
	require.Equal(t, 500*time.Millisecond, cfg.RPC.Retry.InitialBackoff.Duration)
	require.Equal(t, 3, cfg.RPC.Retry.MaxAttempts)
}

func TestLoadFromFile(t *testing.T) {
	for _, path := range []string{
		"../../config.example.yaml",
		"../../config.example.json",
		"../../config.example.toml",
	} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			cfg, err := LoadFromFile(path)
			require.NoError(t, err)
			validateConfig(t, cfg, filepath.Ext(path))
		})
	}
}

func TestLoadFromFile_UnsupportedFormat(t *testing.T) {
	_, err := LoadFromFile("config.txt")
	require.ErrorContains(t, err, "unsupported config file format")
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	t.Setenv(EnvRPCURL, "http://override:8545")
	t.Setenv(EnvDBPath, "/tmp/override.sqlite")

	cfg, err := LoadFromFile("../../config.example.yaml")
	require.NoError(t, err)
	require.Equal(t, "http://override:8545", cfg.RPC.URL)
	require.Equal(t, "/tmp/override.sqlite", cfg.DB.Path)
}

func TestLoadFromFile_DotEnv(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
indexer:
  contract_address: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
  vault_address: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
db:
  path: "./bounties.sqlite"
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("BOUNTY_RPC_URL=http://from-dotenv:8545\n"), 0o600))

	// godotenv sets process env; make sure it is restored after the test
	t.Setenv(EnvRPCURL, "")
	require.NoError(t, os.Unsetenv(EnvRPCURL))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)
	require.Equal(t, "http://from-dotenv:8545", cfg.RPC.URL)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
indexer:
  contract_address: "not-an-address"
rpc:
  url: "http://localhost:8545"
`), 0o600))

	_, err := LoadFromFile(configPath)
	require.ErrorContains(t, err, "indexer.contract_address")
}

// validateConfig checks that the loaded config has expected values
func validateConfig(t *testing.T, cfg *config.Config, format string) {
	t.Helper()

	require.NotEmpty(t, cfg.RPC.URL, "[%s] rpc.url should not be empty", format)
	require.NotNil(t, cfg.RPC.Retry, "[%s] rpc.retry should have defaults", format)

	require.NotEmpty(t, cfg.Indexer.ContractAddress, "[%s] indexer.contract_address", format)
	require.NotEmpty(t, cfg.Indexer.VaultAddress, "[%s] indexer.vault_address", format)
	require.NotZero(t, cfg.Indexer.ChunkSize, "[%s] indexer.chunk_size should not be zero", format)
	require.NotEmpty(t, cfg.Indexer.Finality, "[%s] finality should have default value applied", format)
	require.Equal(t, config.DefaultEarningsNormalizer, cfg.Indexer.EarningsNormalizer, "[%s]", format)
	require.NotZero(t, cfg.Indexer.PollInterval.Duration, "[%s] poll_interval", format)

	require.NotEmpty(t, cfg.DB.Path, "[%s] db.path should not be empty", format)
	require.NotEmpty(t, cfg.DB.JournalMode, "[%s] db.journal_mode should have default value", format)
	require.NotEmpty(t, cfg.DB.Synchronous, "[%s] db.synchronous should have default value", format)
}

func TestConfigDefaults(t *testing.T) {
	cfg := &config.Config{
		Indexer: config.IndexerConfig{
			ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			VaultAddress:    "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		},
		RPC: config.RPCConfig{URL: "https://test.com"},
		DB:  config.DatabaseConfig{Path: "./test.db"},
		API: &config.APIConfig{Enabled: true, CORS: config.CORSConfig{Enabled: true}},
	}

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	require.Equal(t, "latest", cfg.Indexer.Finality)
	require.Equal(t, uint64(12), cfg.Indexer.FinalityConfirmations)
	require.Equal(t, uint64(1000), cfg.Indexer.ChunkSize)
	require.Equal(t, 5, cfg.Indexer.MaxIntegrityRetries)
	require.Equal(t, 3, cfg.Indexer.MaxCommitRetries)
	require.Equal(t, "1000000000000000000000", cfg.Indexer.Normalizer().String())

	require.Equal(t, "WAL", cfg.DB.JournalMode)
	require.Equal(t, "NORMAL", cfg.DB.Synchronous)
	require.Equal(t, 5000, cfg.DB.BusyTimeout)

	require.Equal(t, ":8080", cfg.API.ListenAddress)
	require.Equal(t, []string{"*"}, cfg.API.CORS.AllowedOrigins)
	require.Equal(t, 15*time.Second, cfg.API.ReadTimeout.Duration)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg := &config.Config{
			Indexer: config.IndexerConfig{
				ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
				VaultAddress:    "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
			},
			RPC: config.RPCConfig{URL: "https://test.com"},
			DB:  config.DatabaseConfig{Path: "./test.db"},
		}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{
			name:    "missing rpc url",
			mutate:  func(c *config.Config) { c.RPC.URL = "" },
			wantErr: "rpc.url is required",
		},
		{
			name:    "bad vault",
			mutate:  func(c *config.Config) { c.Indexer.VaultAddress = "0x12" },
			wantErr: "indexer.vault_address",
		},
		{
			name:    "bad finality",
			mutate:  func(c *config.Config) { c.Indexer.Finality = "pending" },
			wantErr: "indexer.finality",
		},
		{
			name:    "zero normalizer",
			mutate:  func(c *config.Config) { c.Indexer.EarningsNormalizer = "0" },
			wantErr: "greater than zero",
		},
		{
			name:    "negative normalizer",
			mutate:  func(c *config.Config) { c.Indexer.EarningsNormalizer = "-5" },
			wantErr: "indexer.earnings_normalizer",
		},
		{
			name:    "missing db path",
			mutate:  func(c *config.Config) { c.DB.Path = "" },
			wantErr: "db.path is required",
		},
		{
			name:    "bad journal mode",
			mutate:  func(c *config.Config) { c.DB.JournalMode = "FAST" },
			wantErr: "db.journal_mode",
		},
		{
			name: "unknown log component",
			mutate: func(c *config.Config) {
				c.Logging = &config.LoggingConfig{ComponentLevels: map[string]string{"downloader": "debug"}}
			},
			wantErr: "unknown component",
		},
		{
			name: "bad log level",
			mutate: func(c *config.Config) {
				c.Logging = &config.LoggingConfig{DefaultLevel: "loud"}
			},
			wantErr: "logging.default_level",
		},
		{
			name: "bad metrics path",
			mutate: func(c *config.Config) {
				c.Metrics = &config.MetricsConfig{Enabled: true, ListenAddress: ":9090", Path: "metrics"}
			},
			wantErr: "path must start with '/'",
		},
		{
			name: "bad proof verifier url",
			mutate: func(c *config.Config) {
				c.ProofVerifier = &config.ProofVerifierConfig{URL: "not a url"}
			},
			wantErr: "proof_verifier.url",
		},
		{
			name: "bad wal mode",
			mutate: func(c *config.Config) {
				c.Maintenance = &config.MaintenanceConfig{WALCheckpointMode: "SOMETIMES"}
			},
			wantErr: "wal_checkpoint_mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
