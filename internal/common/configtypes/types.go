package configtypes

// Log level constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// Worker application names usable in route entries
const (
	AppAffine    = "affine"
	AppTelemetry = "telemetry"
)

// Probe store backends
const (
	ProbeStoreMemory = "memory"
	ProbeStoreRedis  = "redis"
)

// WorkerConfig is the edge worker main configuration
type WorkerConfig struct {
	Server       ServerConfig        `yaml:"server"`
	Log          LogConfig           `yaml:"log"`
	Metrics      MetricsConfig       `yaml:"metrics"`
	Origins      OriginsConfig       `yaml:"origins"`
	Routes       []RouteConfig       `yaml:"routes"`
	Fetch        FetchConfig         `yaml:"fetch"`
	Probe        ProbeConfig         `yaml:"probe"`
	Redis        RedisConfig         `yaml:"redis"`
	LinkPreview  LinkPreviewConfig   `yaml:"link_preview"`
	Telemetry    TelemetryConfig     `yaml:"telemetry"`
	ClientIP     *ClientIPConfig     `yaml:"client_ip,omitempty"`
	EventLogging *EventLoggingConfig `yaml:"event_logging,omitempty"`
	WorkerID     string              `yaml:"worker_id,omitempty"`
}

type ServerConfig struct {
	Listen  string    `yaml:"listen"`
	Timeout Duration  `yaml:"timeout"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig enables an additional HTTPS listener.
// Relative certificate paths are resolved against the config file directory.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Listen   string `yaml:"listen"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// OriginsConfig lists allowed Origin/Referer rules.
// Rule syntax: "~regexp", "~*regexp" (case-insensitive), wildcard with "*", or an exact origin.
// An empty list selects the built-in defaults.
type OriginsConfig struct {
	Allow []string `yaml:"allow"`
}

// RouteConfig binds a worker app to an exact host and a path prefix
type RouteConfig struct {
	Host   string `yaml:"host"`
	Prefix string `yaml:"prefix"`
	App    string `yaml:"app"`
}

type FetchConfig struct {
	Timeout        Duration `yaml:"timeout"`
	UserAgent      string   `yaml:"user_agent"`
	MaxRedirects   int      `yaml:"max_redirects"`
	MaxBodySize    int      `yaml:"max_body_size"`
	SSRFProtection *bool    `yaml:"ssrf_protection,omitempty"` // default: true
}

type ProbeConfig struct {
	Timeout Duration `yaml:"timeout"`
	Store   string   `yaml:"store"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type LinkPreviewConfig struct {
	ImageProxyPath string `yaml:"image_proxy_path"`
}

type TelemetryConfig struct {
	Upstream string `yaml:"upstream"`
}

// ClientIPConfig lists headers consulted, in order, for the client address
type ClientIPConfig struct {
	Headers []string `yaml:"headers"`
}

type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// EventLoggingConfig configures access event logging
type EventLoggingConfig struct {
	File EventFileConfig `yaml:"file"`
}

type EventFileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// Template renders one line per event with {field} placeholders.
	// Empty writes JSON lines.
	Template string         `yaml:"template,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}
