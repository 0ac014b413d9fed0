package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	DefaultZoneID string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBRunMigrations   bool

	Redis      RedisConfig
	CodeStore  CodeStoreConfig
	Invitation InvitationConfig
	Email      EmailConfig
	Session    SessionConfig
	RateLimit  RateLimitConfig
	Scheduler  SchedulerConfig
	Otel       OtelConfig

	IdentityProviders  []IdentityProviderConfig
	PasswordPolicyPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CodeStoreConfig struct {
	// Backend is either "database" or "redis".
	Backend   string
	KeyPrefix string
}

type InvitationConfig struct {
	Brand           string
	BaseURL         string
	IssueTTL        time.Duration
	SessionTTL      time.Duration
	DefaultRedirect string
}

type EmailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type SessionConfig struct {
	CookieName   string
	CookieSecure bool
	TTL          time.Duration
}

// RateLimitConfig throttles the invitation acceptance endpoints. Buckets
// and locks live in the shared redis.
type RateLimitConfig struct {
	Enabled     bool
	AcceptRate  float64
	AcceptBurst int
	LockTTL     time.Duration
}

// SchedulerConfig drives the housekeeping loop that purges expired codes
// and ended sessions.
type SchedulerConfig struct {
	Enabled          bool
	RunInterval      time.Duration
	JobTimeout       time.Duration
	SessionRetention time.Duration
	EnabledJobs      []string
}

// OtelConfig controls span export. With export disabled spans are still
// recorded so trace ids reach the logs.
type OtelConfig struct {
	Enabled          bool
	ExporterEndpoint string
	// ExporterProtocol is "grpc" or "http".
	ExporterProtocol string
	SamplingRatio    float64
}

// IdentityProviderConfig is a provider declared through IDP_<KIND>_*
// variables, e.g. IDP_SAML_ENABLED, IDP_SAML_ORIGIN and IDP_SAML_ZONES.
type IdentityProviderConfig struct {
	Kind    string
	Origin  string
	Name    string
	Enabled bool
	Zones   []string
	URL     string
}

var identityProviderKinds = []struct {
	kind   string
	origin string
	name   string
}{
	{kind: "uaa", origin: "uaa", name: "Username and password"},
	{kind: "saml", origin: "saml", name: "SAML"},
	{kind: "ldap", origin: "ldap", name: "LDAP"},
	{kind: "oidc", origin: "oidc", name: "OpenID Connect"},
}

const (
	CodeStoreDatabase = "database"
	CodeStoreRedis    = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	defaultZoneID := strings.TrimSpace(getenv("DEFAULT_ZONE_ID", "uaa"))
	cookieSecure := environment == "production"
	if !cookieSecure {
		cookieSecure = getenvBool("SESSION_COOKIE_SECURE", false)
	}

	return Config{
		AppName:       getenv("APP_SERVICE", "identity"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   environment,
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		LogLevel:      strings.ToLower(getenv("LOG_LEVEL", "info")),
		DefaultZoneID: defaultZoneID,

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "identity"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBRunMigrations:   getenvBool("DATABASE_RUN_MIGRATIONS", true),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		CodeStore: CodeStoreConfig{
			Backend:   normalizeBackend(getenv("CODESTORE_BACKEND", CodeStoreDatabase)),
			KeyPrefix: getenv("CODESTORE_REDIS_PREFIX", "identity:code:"),
		},
		Invitation: InvitationConfig{
			Brand:           strings.ToLower(getenv("INVITATION_BRAND", "oss")),
			BaseURL:         strings.TrimRight(getenv("INVITATION_BASE_URL", "http://localhost:8080"), "/"),
			IssueTTL:        getenvDuration("INVITATION_ISSUE_TTL", 365*24*time.Hour),
			SessionTTL:      getenvDuration("INVITATION_SESSION_TTL", 10*time.Minute),
			DefaultRedirect: getenv("INVITATION_DEFAULT_REDIRECT", "/home"),
		},
		Email: EmailConfig{
			Enabled:      getenvBool("EMAIL_ENABLED", false),
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 25),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@localhost"),
		},
		Session: SessionConfig{
			CookieName:   getenv("SESSION_COOKIE_NAME", "_sid"),
			CookieSecure: cookieSecure,
			TTL:          getenvDuration("SESSION_TTL", 12*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getenvBool("RATE_LIMIT_ENABLED", false),
			AcceptRate:  getenvFloat("RATE_LIMIT_ACCEPT_RATE", 1),
			AcceptBurst: getenvInt("RATE_LIMIT_ACCEPT_BURST", 10),
			LockTTL:     getenvDuration("RATE_LIMIT_LOCK_TTL", 10*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:          getenvBool("SCHEDULER_ENABLED", true),
			RunInterval:      getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
			JobTimeout:       getenvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Second),
			SessionRetention: getenvDuration("SCHEDULER_SESSION_RETENTION", 24*time.Hour),
			EnabledJobs:      getenvList("SCHEDULER_JOBS"),
		},
		Otel: OtelConfig{
			Enabled:          getenvBool("OTEL_ENABLED", false),
			ExporterEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
			ExporterProtocol: strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		IdentityProviders:  loadIdentityProviders(defaultZoneID),
		PasswordPolicyPath: strings.TrimSpace(getenv("PASSWORD_POLICY_PATH", "")),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// loadIdentityProviders always declares the local provider, enabled unless
// IDP_UAA_ENABLED is false. Other kinds appear once any of their variables is set.
func loadIdentityProviders(defaultZoneID string) []IdentityProviderConfig {
	out := make([]IdentityProviderConfig, 0, len(identityProviderKinds))
	for _, k := range identityProviderKinds {
		prefix := "IDP_" + strings.ToUpper(k.kind) + "_"
		local := k.kind == "uaa"
		if !local && !hasEnvPrefix(prefix) {
			continue
		}
		zones := getenvList(prefix + "ZONES")
		if len(zones) == 0 {
			zones = []string{defaultZoneID}
		}
		out = append(out, IdentityProviderConfig{
			Kind:    k.kind,
			Origin:  strings.TrimSpace(getenv(prefix+"ORIGIN", k.origin)),
			Name:    strings.TrimSpace(getenv(prefix+"NAME", k.name)),
			Enabled: getenvBool(prefix+"ENABLED", local),
			Zones:   zones,
			URL:     strings.TrimSpace(getenv(prefix+"URL", "")),
		})
	}
	return out
}

func hasEnvPrefix(prefix string) bool {
	for _, entry := range os.Environ() {
		if strings.HasPrefix(entry, prefix) {
			return true
		}
	}
	return false
}

func normalizeBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case CodeStoreRedis:
		return CodeStoreRedis
	default:
		return CodeStoreDatabase
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
