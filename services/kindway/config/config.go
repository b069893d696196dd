package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when KINDWAY_CONFIG is not set. A missing file is not an error.
const DefaultFile = "configs/kindway.yaml"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Session  SessionConfig
	JWT      JWTConfig
	Firebase FirebaseConfig
	Geo      GeoConfig
	Kafka    KafkaConfig
	Notify   NotifyConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type DBConfig struct {
	Path string
}

type SessionConfig struct {
	Secret string
	MaxAge int // seconds
}

type JWTConfig struct {
	SigningKey string
	Issuer     string
	TTL        time.Duration
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string
}

type GeoConfig struct {
	URL            string // Nominatim-compatible base URL; empty disables geocoding
	UserAgent      string
	Timeout        time.Duration
	Country        string // appended to donor pincodes
	RedisURL       string // empty disables the geocode cache
	CacheTTL       time.Duration
	MatchRadiusKm  float64
	SearchRadiusKm float64
}

type KafkaConfig struct {
	Brokers []string
}

type NotifyConfig struct {
	RetryInterval time.Duration // 0 disables the outbox relay
	MailFrom      string
	ContactTo     string // contact form inbox; defaults to MailFrom
}

type AdminConfig struct {
	Email    string
	Password string
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// fileConfig mirrors the YAML layout of the optional config file.
type fileConfig struct {
	Server struct {
		Port           string   `yaml:"port"`
		Env            string   `yaml:"env"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	JWT struct {
		Issuer string `yaml:"issuer"`
		TTL    string `yaml:"ttl"`
	} `yaml:"jwt"`
	Firebase struct {
		ProjectID       string `yaml:"project_id"`
		CredentialsPath string `yaml:"credentials_path"`
	} `yaml:"firebase"`
	Geo struct {
		URL            string  `yaml:"url"`
		UserAgent      string  `yaml:"user_agent"`
		Timeout        string  `yaml:"timeout"`
		Country        string  `yaml:"country"`
		RedisURL       string  `yaml:"redis_url"`
		CacheTTL       string  `yaml:"cache_ttl"`
		MatchRadiusKm  float64 `yaml:"match_radius_km"`
		SearchRadiusKm float64 `yaml:"search_radius_km"`
	} `yaml:"geo"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
	} `yaml:"kafka"`
	Notify struct {
		RetryInterval string `yaml:"retry_interval"`
		MailFrom      string `yaml:"mail_from"`
		ContactTo     string `yaml:"contact_to"`
	} `yaml:"notify"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Env:            "development",
			AllowedOrigins: []string{"*"},
		},
		DB: DBConfig{Path: "kindway.db"},
		Session: SessionConfig{
			MaxAge: 7 * 24 * 3600,
		},
		JWT: JWTConfig{
			Issuer: "kindway",
			TTL:    24 * time.Hour,
		},
		Geo: GeoConfig{
			URL:            "https://nominatim.openstreetmap.org",
			UserAgent:      "kindway-geocoder",
			Timeout:        5 * time.Second,
			Country:        "India",
			CacheTTL:       30 * 24 * time.Hour,
			MatchRadiusKm:  50,
			SearchRadiusKm: 25,
		},
		Notify: NotifyConfig{
			RetryInterval: time.Minute,
			MailFrom:      "noreply@kindway.org",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, in increasing order of precedence. A .env file in the
// working directory is loaded into the environment first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	path := getEnv("KINDWAY_CONFIG", DefaultFile)
	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&c.Server.Port, f.Server.Port)
	setString(&c.Server.Env, f.Server.Env)
	if len(f.Server.AllowedOrigins) > 0 {
		c.Server.AllowedOrigins = trimNonEmpty(f.Server.AllowedOrigins)
	}
	setString(&c.DB.Path, f.Database.Path)
	setString(&c.JWT.Issuer, f.JWT.Issuer)
	setString(&c.Firebase.ProjectID, f.Firebase.ProjectID)
	setString(&c.Firebase.CredentialsPath, f.Firebase.CredentialsPath)
	setString(&c.Geo.URL, f.Geo.URL)
	setString(&c.Geo.UserAgent, f.Geo.UserAgent)
	setString(&c.Geo.Country, f.Geo.Country)
	setString(&c.Geo.RedisURL, f.Geo.RedisURL)
	setString(&c.Notify.MailFrom, f.Notify.MailFrom)
	setString(&c.Notify.ContactTo, f.Notify.ContactTo)
	if f.Geo.MatchRadiusKm > 0 {
		c.Geo.MatchRadiusKm = f.Geo.MatchRadiusKm
	}
	if f.Geo.SearchRadiusKm > 0 {
		c.Geo.SearchRadiusKm = f.Geo.SearchRadiusKm
	}
	if len(f.Kafka.Brokers) > 0 {
		c.Kafka.Brokers = trimNonEmpty(f.Kafka.Brokers)
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"jwt.ttl", f.JWT.TTL, &c.JWT.TTL},
		{"geo.timeout", f.Geo.Timeout, &c.Geo.Timeout},
		{"geo.cache_ttl", f.Geo.CacheTTL, &c.Geo.CacheTTL},
		{"notify.retry_interval", f.Notify.RetryInterval, &c.Notify.RetryInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse config file: %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("ENV", c.Server.Env)
	c.Server.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.Server.AllowedOrigins)
	c.DB.Path = getEnv("DB_PATH", c.DB.Path)
	c.Session.Secret = getEnv("SESSION_SECRET", c.Session.Secret)
	c.Session.MaxAge = getEnvInt("SESSION_MAX_AGE", c.Session.MaxAge)
	c.JWT.SigningKey = getEnv("JWT_SIGNING_KEY", c.JWT.SigningKey)
	c.JWT.Issuer = getEnv("JWT_ISSUER", c.JWT.Issuer)
	c.JWT.TTL = getEnvDuration("JWT_TTL", c.JWT.TTL)
	c.Firebase.ProjectID = getEnv("FIREBASE_PROJECT_ID", c.Firebase.ProjectID)
	c.Firebase.CredentialsPath = getEnv("FIREBASE_CREDENTIALS_PATH", c.Firebase.CredentialsPath)
	c.Geo.URL = getEnv("GEOCODER_URL", c.Geo.URL)
	c.Geo.UserAgent = getEnv("GEOCODER_USER_AGENT", c.Geo.UserAgent)
	c.Geo.Timeout = getEnvDuration("GEOCODER_TIMEOUT", c.Geo.Timeout)
	c.Geo.Country = getEnv("GEOCODE_COUNTRY", c.Geo.Country)
	c.Geo.RedisURL = getEnv("REDIS_URL", c.Geo.RedisURL)
	c.Geo.CacheTTL = getEnvDuration("GEOCODE_CACHE_TTL", c.Geo.CacheTTL)
	c.Geo.MatchRadiusKm = getEnvFloat("MATCH_RADIUS_KM", c.Geo.MatchRadiusKm)
	c.Geo.SearchRadiusKm = getEnvFloat("SEARCH_RADIUS_KM", c.Geo.SearchRadiusKm)
	c.Kafka.Brokers = getEnvList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Notify.RetryInterval = getEnvDuration("NOTIFY_RETRY_INTERVAL", c.Notify.RetryInterval)
	c.Notify.MailFrom = getEnv("MAIL_FROM", c.Notify.MailFrom)
	c.Notify.ContactTo = getEnv("CONTACT_EMAIL", c.Notify.ContactTo)
	if c.Notify.ContactTo == "" {
		c.Notify.ContactTo = c.Notify.MailFrom
	}
	c.Admin.Email = getEnv("ADMIN_EMAIL", c.Admin.Email)
	c.Admin.Password = getEnv("ADMIN_PASSWORD", c.Admin.Password)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return trimNonEmpty(strings.Split(value, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
