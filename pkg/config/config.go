package config

import (
	"fmt"
	"math/big"
	"net/url"
	"slices"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/BountyIndexor/internal/common"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
)

// DefaultEarningsNormalizer is 1000 tokens expressed in 18 decimal base units.
const DefaultEarningsNormalizer = "1000000000000000000000"

// Config represents the complete configuration for the BountyIndexor.
type Config struct {
	// Indexer contains the bounty pipeline configuration
	Indexer IndexerConfig `yaml:"indexer" json:"indexer" toml:"indexer"`

	// RPC contains the upstream node configuration
	RPC RPCConfig `yaml:"rpc" json:"rpc" toml:"rpc"`

	// DB contains database configuration for the aggregation store
	DB DatabaseConfig `yaml:"db" json:"db" toml:"db"`

	// Maintenance contains optional database maintenance settings
	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`

	// Logging contains logging configuration
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics contains Prometheus metrics configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`

	// API contains the query API configuration
	API *APIConfig `yaml:"api,omitempty" json:"api,omitempty" toml:"api,omitempty"`

	// ProofVerifier contains the off-chain proof verification endpoint
	ProofVerifier *ProofVerifierConfig `yaml:"proof_verifier,omitempty" json:"proof_verifier,omitempty" toml:"proof_verifier,omitempty"` //nolint:lll
}

// IndexerConfig configures which contracts are indexed and how batches are formed.
type IndexerConfig struct {
	// ContractAddress is the bounty contract emitting BountyCreated/Completed/Cancelled
	ContractAddress string `yaml:"contract_address" json:"contract_address" toml:"contract_address"`

	// VaultAddress is the payout vault emitting FundsReleased
	VaultAddress string `yaml:"vault_address" json:"vault_address" toml:"vault_address"`

	// StartHeight is the genesis block used when no checkpoint exists
	StartHeight uint64 `yaml:"start_height" json:"start_height" toml:"start_height"`

	// EarningsNormalizer is the token amount (base units, decimal) that saturates the earnings score
	EarningsNormalizer string `yaml:"earnings_normalizer" json:"earnings_normalizer" toml:"earnings_normalizer"`

	// Finality specifies the finality mode: "finalized", "safe", or "latest"
	Finality string `yaml:"finality" json:"finality" toml:"finality"`

	// FinalityConfirmations is the number of trailing blocks withheld from indexing.
	// Only used when Finality is set to "latest"
	FinalityConfirmations uint64 `yaml:"finality_confirmations" json:"finality_confirmations" toml:"finality_confirmations"`

	// ChunkSize is the maximum number of blocks per batch
	ChunkSize uint64 `yaml:"chunk_size" json:"chunk_size" toml:"chunk_size"`

	// MaxIntegrityRetries bounds retries of a malformed batch before the processor fails
	MaxIntegrityRetries int `yaml:"max_integrity_retries" json:"max_integrity_retries" toml:"max_integrity_retries"`

	// MaxCommitRetries bounds retries of a failing batch commit before the processor fails
	MaxCommitRetries int `yaml:"max_commit_retries" json:"max_commit_retries" toml:"max_commit_retries"`

	// PollInterval is how long to wait for new blocks once caught up with the chain
	PollInterval common.Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`
}

// ApplyDefaults sets default values for optional indexer configuration fields.
func (i *IndexerConfig) ApplyDefaults() {
	if i.EarningsNormalizer == "" {
		i.EarningsNormalizer = DefaultEarningsNormalizer
	}
	if i.Finality == "" {
		i.Finality = "latest"
	}
	if i.Finality == "latest" && i.FinalityConfirmations == 0 {
		i.FinalityConfirmations = 12
	}
	if i.ChunkSize == 0 {
		i.ChunkSize = 1000
	}
	if i.MaxIntegrityRetries == 0 {
		i.MaxIntegrityRetries = 5
	}
	if i.MaxCommitRetries == 0 {
		i.MaxCommitRetries = 3
	}
	if i.PollInterval.Duration == 0 {
		i.PollInterval = common.NewDuration(5 * time.Second) //nolint:mnd
	}
}

// Validate checks if the indexer configuration is valid.
func (i *IndexerConfig) Validate() error {
	if !ethcommon.IsHexAddress(i.ContractAddress) {
		return fmt.Errorf("indexer.contract_address: invalid address %q", i.ContractAddress)
	}
	if !ethcommon.IsHexAddress(i.VaultAddress) {
		return fmt.Errorf("indexer.vault_address: invalid address %q", i.VaultAddress)
	}
	if !slices.Contains([]string{"finalized", "safe", "latest"}, i.Finality) {
		return fmt.Errorf("indexer.finality must be one of: 'finalized', 'safe', or 'latest'")
	}
	normalizer, err := common.ParseBigInt(i.EarningsNormalizer)
	if err != nil {
		return fmt.Errorf("indexer.earnings_normalizer: %w", err)
	}
	if normalizer.Sign() == 0 {
		return fmt.Errorf("indexer.earnings_normalizer must be greater than zero")
	}
	if i.MaxIntegrityRetries < 0 || i.MaxCommitRetries < 0 {
		return fmt.Errorf("indexer retry bounds must not be negative")
	}
	return nil
}

// Normalizer returns the parsed earnings normalizer. Call only after Validate.
func (i *IndexerConfig) Normalizer() *big.Int {
	n, err := common.ParseBigInt(i.EarningsNormalizer)
	if err != nil || n.Sign() == 0 {
		n, _ = new(big.Int).SetString(DefaultEarningsNormalizer, 10)
	}
	return n
}

// RPCConfig configures the upstream node connection.
type RPCConfig struct {
	// URL is the Ethereum RPC endpoint URL
	URL string `yaml:"url" json:"url" toml:"url"`

	// Retry contains RPC retry configuration with exponential backoff
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`
}

// ApplyDefaults sets default values for optional rpc configuration fields.
func (r *RPCConfig) ApplyDefaults() {
	if r.Retry == nil {
		r.Retry = &RetryConfig{}
	}
	r.Retry.ApplyDefaults()
}

// RetryConfig represents retry configuration with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial request)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`

	// InitialBackoff is the initial backoff duration before first retry
	InitialBackoff common.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`

	// MaxBackoff is the maximum backoff duration
	MaxBackoff common.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

// ApplyDefaults sets default values for retry configuration.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = common.NewDuration(1 * time.Second)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	// Path is the file path to the SQLite database
	Path string `yaml:"path" json:"path" toml:"path"`

	// JournalMode sets the SQLite journal mode (e.g., "WAL", "DELETE")
	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`

	// Synchronous sets the synchronization level ("FULL", "NORMAL", "OFF")
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is the time in milliseconds to wait when the database is locked
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`

	// CacheSize is the size of the page cache (negative = KB, positive = pages)
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	// MaxOpenConnections is the maximum number of open database connections
	MaxOpenConnections int `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`

	// MaxIdleConnections is the maximum number of idle connections in the pool
	MaxIdleConnections int `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`

	// EnableForeignKeys enables foreign key constraint enforcement
	EnableForeignKeys bool `yaml:"enable_foreign_keys" json:"enable_foreign_keys" toml:"enable_foreign_keys"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
}

// Validate checks if the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("db.path is required")
	}
	if d.JournalMode != "" &&
		!slices.Contains([]string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}, d.JournalMode) {
		return fmt.Errorf("db.journal_mode must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
	}
	if d.Synchronous != "" && !slices.Contains([]string{"FULL", "NORMAL", "OFF"}, d.Synchronous) {
		return fmt.Errorf("db.synchronous must be one of: FULL, NORMAL, OFF")
	}
	return nil
}

// MaintenanceConfig configures database maintenance behavior.
type MaintenanceConfig struct {
	// Enabled controls whether background maintenance runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// CheckInterval is how often to run maintenance (e.g., "30m", "1h")
	CheckInterval common.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`

	// VacuumOnStartup runs maintenance immediately on startup
	VacuumOnStartup bool `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup"`

	// WALCheckpointMode controls the WAL checkpoint aggressiveness
	// Options: PASSIVE, FULL, RESTART, TRUNCATE
	WALCheckpointMode string `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode"`
}

// ApplyDefaults sets default values for optional maintenance configuration fields.
func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval = common.NewDuration(30 * time.Minute) //nolint:mnd
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
}

// Validate checks if the maintenance configuration is valid.
func (m *MaintenanceConfig) Validate() error {
	if m.WALCheckpointMode != "" {
		validModes := []string{"PASSIVE", "FULL", "RESTART", "TRUNCATE"}
		if !slices.Contains(validModes, m.WALCheckpointMode) {
			return fmt.Errorf("maintenance.wal_checkpoint_mode: must be one of: PASSIVE, FULL, RESTART, TRUNCATE")
		}
	}

	return nil
}

// LoggingConfig configures logging behavior with per-component log levels.
type LoggingConfig struct {
	// DefaultLevel is the default log level for all components
	// Options: "debug", "info", "warn", "error"
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level"`

	// Development enables development mode (stack traces, console encoder)
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels sets log levels for specific components
	// Available components: processor, source, store, checkpoint, maintenance, api, proof
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty"` //nolint:lll
}

// ApplyDefaults sets default values for optional logging configuration fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
}

// Validate checks if the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(l.DefaultLevel)]; !valid {
			return fmt.Errorf("logging.default_level: must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, validComponent := common.AllComponents[common.ToLowerWithTrim(component)]; !validComponent {
			return fmt.Errorf("logging.component_levels: unknown component '%s'", component)
		}

		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(level)]; !valid {
			return fmt.Errorf("logging.component_levels[%s]: must be one of: debug, info, warn, error", component)
		}
	}

	return nil
}

// GetComponentLevel returns the log level for a specific component.
// Falls back to DefaultLevel if no component-specific level is set.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if level, ok := l.ComponentLevels[component]; ok {
		return common.ToLowerWithTrim(level)
	}
	return l.GetDefaultLevel()
}

// GetDefaultLevel returns the default log level.
func (l *LoggingConfig) GetDefaultLevel() string {
	if l.DefaultLevel == "" {
		return "info"
	}
	return common.ToLowerWithTrim(l.DefaultLevel)
}

// IsDevelopment returns whether development mode is enabled.
func (l *LoggingConfig) IsDevelopment() bool {
	return l.Development
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP endpoint are active
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the metrics HTTP server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path where metrics are exposed
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks if the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.ListenAddress == "" {
			return fmt.Errorf("listen_address is required when metrics are enabled")
		}
		if m.Path == "" {
			return fmt.Errorf("path is required when metrics are enabled")
		}
		if m.Path[0] != '/' {
			return fmt.Errorf("path must start with '/'")
		}
	}
	return nil
}

// APIConfig configures the query API server.
type APIConfig struct {
	// Enabled controls whether the API server is started
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the API server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request
	ReadTimeout common.Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response
	WriteTimeout common.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout
	IdleTimeout common.Duration `yaml:"idle_timeout" json:"idle_timeout" toml:"idle_timeout"`

	// CORS contains cross-origin settings
	CORS CORSConfig `yaml:"cors" json:"cors" toml:"cors"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled" toml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins"`
}

// ApplyDefaults sets default values for optional api configuration fields.
func (a *APIConfig) ApplyDefaults() {
	if a.ListenAddress == "" {
		a.ListenAddress = ":8080"
	}
	if a.ReadTimeout.Duration == 0 {
		a.ReadTimeout = common.NewDuration(15 * time.Second) //nolint:mnd
	}
	if a.WriteTimeout.Duration == 0 {
		a.WriteTimeout = common.NewDuration(15 * time.Second) //nolint:mnd
	}
	if a.IdleTimeout.Duration == 0 {
		a.IdleTimeout = common.NewDuration(60 * time.Second) //nolint:mnd
	}
	if a.CORS.Enabled && len(a.CORS.AllowedOrigins) == 0 {
		a.CORS.AllowedOrigins = []string{"*"}
	}
}

// Validate checks if the api configuration is valid.
func (a *APIConfig) Validate() error {
	if a.Enabled && a.ListenAddress == "" {
		return fmt.Errorf("listen_address is required when the api is enabled")
	}
	return nil
}

// ProofVerifierConfig configures the off-chain proof verification service.
type ProofVerifierConfig struct {
	// URL is the verification endpoint
	URL string `yaml:"url" json:"url" toml:"url"`

	// ClientID is sent in the X-Client-Id header
	ClientID string `yaml:"client_id" json:"client_id" toml:"client_id"`

	// ClientSecret is sent as a bearer token
	ClientSecret string `yaml:"client_secret" json:"client_secret" toml:"client_secret"`

	// Timeout bounds a single verification request
	Timeout common.Duration `yaml:"timeout" json:"timeout" toml:"timeout"`

	// MaxRetries is the number of retries for transient failures
	MaxRetries int `yaml:"max_retries" json:"max_retries" toml:"max_retries"`
}

// ApplyDefaults sets default values for optional proof verifier configuration fields.
func (p *ProofVerifierConfig) ApplyDefaults() {
	if p.Timeout.Duration == 0 {
		p.Timeout = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}
}

// Validate checks if the proof verifier configuration is valid.
func (p *ProofVerifierConfig) Validate() error {
	u, err := url.Parse(p.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("proof_verifier.url: invalid url %q", p.URL)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("proof_verifier.max_retries must not be negative")
	}
	return nil
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	c.Indexer.ApplyDefaults()
	c.RPC.ApplyDefaults()
	c.DB.ApplyDefaults()

	if c.Maintenance != nil {
		c.Maintenance.ApplyDefaults()
	}
	if c.Logging != nil {
		c.Logging.ApplyDefaults()
	}
	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}
	if c.API != nil {
		c.API.ApplyDefaults()
	}
	if c.ProofVerifier != nil {
		c.ProofVerifier.ApplyDefaults()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Indexer.Validate(); err != nil {
		return err
	}

	if c.RPC.URL == "" {
		return fmt.Errorf("rpc.url is required")
	}

	if err := c.DB.Validate(); err != nil {
		return err
	}

	if c.Maintenance != nil {
		if err := c.Maintenance.Validate(); err != nil {
			return err
		}
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	if c.API != nil {
		if err := c.API.Validate(); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	if c.ProofVerifier != nil {
		if err := c.ProofVerifier.Validate(); err != nil {
			return err
		}
	}

	return nil
}
