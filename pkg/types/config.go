package types

import (
	"time"
)

// Mode constants for gateway operation
const (
	ModeLocal  = "local"  // In-memory repositories, no Redis
	ModeRemote = "remote" // Postgres + Redis
)

// AppConfig is the root configuration for the blimp gateway
type AppConfig struct {
	Mode       string `key:"mode" json:"mode"` // "local" or "remote"
	DebugMode  bool   `key:"debugMode" json:"debug_mode"`
	PrettyLogs bool   `key:"prettyLogs" json:"pretty_logs"`

	Database     DatabaseConfig     `key:"database" json:"database"`
	Gateway      GatewayConfig      `key:"gateway" json:"gateway"`
	LLM          LLMConfig          `key:"llm" json:"llm"`
	OAuth        IntegrationOAuth   `key:"oauth" json:"oauth"`
	Integrations IntegrationsConfig `key:"integrations" json:"integrations"`
	Security     SecurityConfig     `key:"security" json:"security"`
	Notify       NotifyConfig       `key:"notify" json:"notify"`
	Scheduler    SchedulerConfig    `key:"scheduler" json:"scheduler"`
}

// IsLocalMode returns true if running without Redis/Postgres
func (c *AppConfig) IsLocalMode() bool {
	return c.Mode == ModeLocal
}

// ----------------------------------------------------------------------------
// Database Configuration
// ----------------------------------------------------------------------------

type DatabaseConfig struct {
	Redis    RedisConfig    `key:"redis" json:"redis"`
	Postgres PostgresConfig `key:"postgres" json:"postgres"`
}

type RedisMode string

const (
	RedisModeSingle  RedisMode = "single"
	RedisModeCluster RedisMode = "cluster"
)

type RedisConfig struct {
	Mode               RedisMode     `key:"mode" json:"mode"`
	Addrs              []string      `key:"addrs" json:"addrs"`
	Username           string        `key:"username" json:"username"`
	Password           string        `key:"password" json:"password"`
	ClientName         string        `key:"clientName" json:"client_name"`
	EnableTLS          bool          `key:"enableTLS" json:"enable_tls"`
	InsecureSkipVerify bool          `key:"insecureSkipVerify" json:"insecure_skip_verify"`
	PoolSize           int           `key:"poolSize" json:"pool_size"`
	MinIdleConns       int           `key:"minIdleConns" json:"min_idle_conns"`
	MaxIdleConns       int           `key:"maxIdleConns" json:"max_idle_conns"`
	ConnMaxIdleTime    time.Duration `key:"connMaxIdleTime" json:"conn_max_idle_time"`
	ConnMaxLifetime    time.Duration `key:"connMaxLifetime" json:"conn_max_lifetime"`
	DialTimeout        time.Duration `key:"dialTimeout" json:"dial_timeout"`
	ReadTimeout        time.Duration `key:"readTimeout" json:"read_timeout"`
	WriteTimeout       time.Duration `key:"writeTimeout" json:"write_timeout"`
	MaxRedirects       int           `key:"maxRedirects" json:"max_redirects"`
	MaxRetries         int           `key:"maxRetries" json:"max_retries"`
	RouteByLatency     bool          `key:"routeByLatency" json:"route_by_latency"`
}

type PostgresConfig struct {
	Host            string        `key:"host" json:"host"`
	Port            int           `key:"port" json:"port"`
	User            string        `key:"user" json:"user"`
	Password        string        `key:"password" json:"password"`
	Database        string        `key:"database" json:"database"`
	SSLMode         string        `key:"sslMode" json:"ssl_mode"`
	MaxOpenConns    int           `key:"maxOpenConns" json:"max_open_conns"`
	MaxIdleConns    int           `key:"maxIdleConns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `key:"connMaxLifetime" json:"conn_max_lifetime"`
}

// ----------------------------------------------------------------------------
// Gateway Configuration
// ----------------------------------------------------------------------------

type GatewayConfig struct {
	HTTP            HTTPConfig    `key:"http" json:"http"`
	ShutdownTimeout time.Duration `key:"shutdownTimeout" json:"shutdown_timeout"`
	AuthSecret      string        `key:"authSecret" json:"auth_secret"` // HS256 secret for user JWTs
	AdminToken      string        `key:"adminToken" json:"admin_token"`
}

type HTTPConfig struct {
	Host             string     `key:"host" json:"host"`
	Port             int        `key:"port" json:"port"`
	EnablePrettyLogs bool       `key:"enablePrettyLogs" json:"enable_pretty_logs"`
	CORS             CORSConfig `key:"cors" json:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `key:"allowOrigins" json:"allow_origins"`
	AllowedMethods []string `key:"allowMethods" json:"allow_methods"`
	AllowedHeaders []string `key:"allowHeaders" json:"allow_headers"`
}

// ----------------------------------------------------------------------------
// LLM Configuration
// ----------------------------------------------------------------------------

const (
	LLMProviderGemini    = "gemini"
	LLMProviderAnthropic = "anthropic"
)

type LLMConfig struct {
	Provider            string          `key:"provider" json:"provider"` // primary provider
	Model               string          `key:"model" json:"model"`
	PlannerTemperature  float64         `key:"plannerTemperature" json:"planner_temperature"`
	ResponseTemperature float64         `key:"responseTemperature" json:"response_temperature"`
	WorkflowTemperature float64         `key:"workflowTemperature" json:"workflow_temperature"`
	ResearchTemperature float64         `key:"researchTemperature" json:"research_temperature"`
	ResearchMaxTokens   int             `key:"researchMaxTokens" json:"research_max_tokens"`
	Gemini              GeminiConfig    `key:"gemini" json:"gemini"`
	Anthropic           AnthropicConfig `key:"anthropic" json:"anthropic"`
}

// GeminiConfig holds an ordered key list; later keys are used after
// quota or auth failures on earlier ones.
type GeminiConfig struct {
	APIKeys []string `key:"apiKeys" json:"api_keys"`
}

type AnthropicConfig struct {
	APIKey    string `key:"apiKey" json:"api_key"`
	Model     string `key:"model" json:"model"`
	MaxTokens int    `key:"maxTokens" json:"max_tokens"`
}

// ----------------------------------------------------------------------------
// OAuth Configuration
// ----------------------------------------------------------------------------

// IntegrationOAuth holds client credentials used to refresh user tokens.
type IntegrationOAuth struct {
	Google OAuthClientConfig `key:"google" json:"google"`
	Slack  OAuthClientConfig `key:"slack" json:"slack"`
	Notion OAuthClientConfig `key:"notion" json:"notion"`
	GitHub OAuthClientConfig `key:"github" json:"github"`
}

type OAuthClientConfig struct {
	ClientID     string `key:"clientId" json:"client_id"`
	ClientSecret string `key:"clientSecret" json:"client_secret"`
}

// ----------------------------------------------------------------------------
// Integrations Configuration
// ----------------------------------------------------------------------------

type IntegrationsConfig struct {
	TrelloAPIKey           string          `key:"trelloApiKey" json:"trello_api_key"`
	GmailDetailConcurrency int             `key:"gmailDetailConcurrency" json:"gmail_detail_concurrency"`
	RateLimit              RateLimitConfig `key:"rateLimit" json:"rate_limit"`
	Timeouts               TimeoutsConfig  `key:"timeouts" json:"timeouts"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `key:"requestsPerSecond" json:"requests_per_second"`
	BurstSize         int     `key:"burstSize" json:"burst_size"`
}

// TimeoutsConfig bounds every external call.
type TimeoutsConfig struct {
	LLM        time.Duration `key:"llm" json:"llm"`
	App        time.Duration `key:"app" json:"app"`
	Credential time.Duration `key:"credential" json:"credential"`
}

// ----------------------------------------------------------------------------
// Security / Notify / Scheduler
// ----------------------------------------------------------------------------

type SecurityConfig struct {
	CredentialKey string `key:"credentialKey" json:"credential_key"`
	LuhnCheck     bool   `key:"luhnCheck" json:"luhn_check"`
	BareSSN       bool   `key:"bareSSN" json:"bare_ssn"`
}

type NotifyConfig struct {
	ResendAPIKey string        `key:"resendApiKey" json:"resend_api_key"`
	FromEmail    string        `key:"fromEmail" json:"from_email"`
	Timeout      time.Duration `key:"timeout" json:"timeout"`
}

func (c NotifyConfig) IsConfigured() bool {
	return c.ResendAPIKey != ""
}

type SchedulerConfig struct {
	Enabled bool          `key:"enabled" json:"enabled"`
	LockTTL time.Duration `key:"lockTtl" json:"lock_ttl"`
}
