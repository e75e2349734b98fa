package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port          int      `envconfig:"PORT" default:"8080"`
	LogLevel      string   `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL   string   `envconfig:"DATABASE_URL" required:"true"`
	AuthSecret    string   `envconfig:"AUTH_SECRET" required:"true"`
	TokenTTLHours int      `envconfig:"TOKEN_TTL_HOURS" default:"12"`
	BcryptCost    int      `envconfig:"BCRYPT_COST" default:"12"`
	CORSOrigins   []string `envconfig:"CORS_ORIGINS" default:""`
	Version       string   `envconfig:"VERSION" default:"dev"`
	AdminEmail    string   `envconfig:"ADMIN_EMAIL" default:""`
	AdminPassword string   `envconfig:"ADMIN_PASSWORD" default:""`
	LoginRate     float64  `envconfig:"LOGIN_RATE" default:"1"`
	LoginBurst    int      `envconfig:"LOGIN_BURST" default:"5"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
