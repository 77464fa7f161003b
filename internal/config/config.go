package config // package config loads application configuration from environment variables

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; nested groups keep the Redis, RabbitMQ, rate limit
// and cache settings next to the code that consumes them.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"dev"`       // application environment (e.g. "dev", "prod")
	Port     string `env:"APP_PORT" envDefault:"8080"`     // HTTP port to listen on
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`    // zerolog level name
	DBUser   string `env:"DB_USER,required,notEmpty"`      // database username
	DBPass   string `env:"DB_PASS"`                        // database password (optional)
	DBHost   string `env:"DB_HOST" envDefault:"localhost"` // database host address
	DBPort   string `env:"DB_PORT" envDefault:"3306"`      // database port number
	DBName   string `env:"DB_NAME,required,notEmpty"`      // database name

	// JWTSecret verifies bearer tokens minted by the identity provider.
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
	// AdminUserIDs is the set of identity-provider subjects granted the admin role.
	AdminUserIDs []string `env:"ADMIN_USER_IDS" envSeparator:","`
	// TrustRoleClaim lets an "admin" role claim in the token grant admin as well.
	TrustRoleClaim bool `env:"TRUST_ROLE_CLAIM" envDefault:"false"`
	// RoleTable also consults the user_roles table for admin grants.
	RoleTable bool `env:"ROLE_TABLE" envDefault:"true"`

	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Lock      LockConfig
}

// RabbitMQConfig holds the broker settings for listing events.  An empty URL
// disables publishing and the audit consumer.
type RabbitMQConfig struct {
	URL        string `env:"RABBITMQ_URL"`
	Exchange   string `env:"RABBITMQ_EXCHANGE" envDefault:"listings"`
	AuditQueue string `env:"RABBITMQ_AUDIT_QUEUE" envDefault:"listings.audit"`
	AuditLog   string `env:"AUDIT_LOG_PATH" envDefault:"logs/moderation.log"`
	Consume    bool   `env:"RABBITMQ_CONSUME" envDefault:"true"`
}

// Load reads an optional .env file and then parses the environment into a
// Config.  Missing required variables are reported as an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("can't parse env variables: %w", err)
	}
	cfg.RateLimit.normalize()
	cfg.Cache.Methods = strings.ToUpper(cfg.Cache.Methods)
	return cfg, nil
}
