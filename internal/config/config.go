package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all the configuration for the application.
type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer `yaml:"http_server"`
	Database   `yaml:"database"`
	Auth       `yaml:"auth"`
	Geo        `yaml:"geo"`
}

// HTTPServer holds HTTP server specific configuration.
type HTTPServer struct {
	Port         int           `yaml:"port" env:"HTTP_SERVER_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// Database holds database connection configuration. Driver "memory" swaps
// PostgreSQL for the in-memory storage, which is handy for local work.
type Database struct {
	Driver          string `yaml:"driver" env:"DATABASE_DRIVER" env-default:"postgres"`
	Host            string `yaml:"host" env:"DATABASE_HOST" env-default:"localhost"`
	Port            int    `yaml:"port" env:"DATABASE_PORT" env-default:"5432"`
	User            string `yaml:"user" env:"DATABASE_USER" env-default:"postgres"`
	Password        string `yaml:"password" env:"DATABASE_PASSWORD"`
	DBName          string `yaml:"dbname" env:"DATABASE_NAME" env-default:"aperture"`
	SSLMode         string `yaml:"sslmode" env:"DATABASE_SSLMODE" env-default:"disable"`
	Timezone        string `yaml:"timezone" env:"DATABASE_TIMEZONE" env-default:"UTC"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS" env-default:"5"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" env-default:"20"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME" env-default:"1h"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DATABASE_AUTO_MIGRATE" env-default:"true"`
	SeedData        bool   `yaml:"seed_data" env:"DATABASE_SEED_DATA" env-default:"true"`
}

// Auth holds JWT and seeded-admin configuration.
type Auth struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"AUTH_JWT_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"AUTH_ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"AUTH_REFRESH_TOKEN_TTL" env-default:"168h"`
	Issuer          string        `yaml:"issuer" env:"AUTH_ISSUER" env-default:"Aperture-Backend"`
	AdminEmail      string        `yaml:"admin_email" env:"AUTH_ADMIN_EMAIL"`
	AdminPassword   string        `yaml:"admin_password" env:"AUTH_ADMIN_PASSWORD"`
}

// Geo holds geolocation provider configuration. Provider "off" stores
// sessions with null geo fields.
type Geo struct {
	Provider string        `yaml:"provider" env:"GEO_PROVIDER" env-default:"http"`
	Endpoint string        `yaml:"endpoint" env:"GEO_ENDPOINT" env-default:"http://ip-api.com/json"`
	Timeout  time.Duration `yaml:"timeout" env:"GEO_TIMEOUT" env-default:"3s"`
	MMDBPath string        `yaml:"mmdb_path" env:"GEO_MMDB_PATH"`
}

// MustLoad loads the application configuration.
func MustLoad() *Config {
	// Try to load .env file (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment variables")
	}

	var cfg Config

	// Check if config file path is specified
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/local.yml" // default path
	}

	// Try to load config file
	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			log.Fatalf("cannot read config: %s", err)
		}
	} else {
		// If config file doesn't exist, use environment variables only
		log.Println("Config file not found, using environment variables only")
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read config from environment: %s", err)
		}
	}

	return &cfg
}
