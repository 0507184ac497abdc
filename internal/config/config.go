package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Posters  PostersConfig  `toml:"posters"`
	Auth     AuthConfig     `toml:"auth"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// PublicURL sert aux liens envoyés par mail et aux URL d'affiches.
	PublicURL      string        `toml:"public_url"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	// TrustProxy n'est à activer que derrière un reverse proxy : l'adresse
	// client est alors lue dans X-Forwarded-For / X-Real-IP.
	TrustProxy bool `toml:"trust_proxy"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type PostersConfig struct {
	Dir            string `toml:"dir"`
	Bucket         string `toml:"bucket"`
	MaxBytes       int64  `toml:"max_bytes"`
	PlaceholderURL string `toml:"placeholder_url"`
}

type AuthConfig struct {
	SessionTTL          time.Duration `toml:"session_ttl"`
	ResetTTL            time.Duration `toml:"reset_ttl"`
	RequireConfirmation bool          `toml:"require_confirmation"`
	// RatePerMinute limite les appels /auth par adresse IP (0 : illimité).
	RatePerMinute int           `toml:"rate_per_minute"`
	SweepInterval time.Duration `toml:"sweep_interval"`
	// RedirectHosts liste les hôtes acceptés pour les liens de
	// réinitialisation, en plus de celui de server.public_url.
	RedirectHosts []string `toml:"redirect_hosts"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default renvoie la configuration embarquée, surchargée par l'environnement.
func Default() Config {
	cfg := builtin()
	applyEnv(&cfg)
	return cfg
}

func builtin() Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("invalid embedded config: %v", err))
	}
	return cfg
}

// Load applique dans l'ordre : valeurs embarquées, fichier TOML (si path
// n'est pas vide), fichier .env, puis variables TRACKER_*.
func Load(path string) (Config, error) {
	cfg := builtin()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

// loadDotEnv ne remplace pas les variables déjà présentes.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Server.Addr) == "":
		return errors.New("server.addr is required")
	case strings.TrimSpace(c.Database.Path) == "":
		return errors.New("database.path is required")
	case strings.TrimSpace(c.Posters.Bucket) == "" || strings.ContainsAny(c.Posters.Bucket, `/\`):
		return fmt.Errorf("posters.bucket %q is invalid", c.Posters.Bucket)
	case c.Auth.SessionTTL <= 0:
		return errors.New("auth.session_ttl must be positive")
	case c.Auth.ResetTTL <= 0:
		return errors.New("auth.reset_ttl must be positive")
	}
	return nil
}

// CreateConfigFile écrit le fichier d'exemple ; un fichier existant n'est
// jamais écrasé.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = envOr("TRACKER_ADDR", cfg.Server.Addr)
	cfg.Server.PublicURL = envOr("TRACKER_PUBLIC_URL", cfg.Server.PublicURL)
	cfg.Server.RequestTimeout = envDuration("TRACKER_REQUEST_TIMEOUT", cfg.Server.RequestTimeout)
	cfg.Server.TrustProxy = envBool("TRACKER_TRUST_PROXY", cfg.Server.TrustProxy)
	cfg.Database.Path = envOr("TRACKER_DB_PATH", cfg.Database.Path)
	cfg.Posters.Dir = envOr("TRACKER_POSTERS_DIR", cfg.Posters.Dir)
	cfg.Posters.Bucket = envOr("TRACKER_POSTERS_BUCKET", cfg.Posters.Bucket)
	cfg.Posters.MaxBytes = int64(envInt("TRACKER_POSTERS_MAX_BYTES", int(cfg.Posters.MaxBytes)))
	cfg.Posters.PlaceholderURL = envOr("TRACKER_POSTERS_PLACEHOLDER_URL", cfg.Posters.PlaceholderURL)
	cfg.Auth.SessionTTL = envDuration("TRACKER_SESSION_TTL", cfg.Auth.SessionTTL)
	cfg.Auth.ResetTTL = envDuration("TRACKER_RESET_TTL", cfg.Auth.ResetTTL)
	cfg.Auth.RequireConfirmation = envBool("TRACKER_REQUIRE_CONFIRMATION", cfg.Auth.RequireConfirmation)
	cfg.Auth.RatePerMinute = envInt("TRACKER_AUTH_RATE_PER_MINUTE", cfg.Auth.RatePerMinute)
	cfg.Auth.SweepInterval = envDuration("TRACKER_SWEEP_INTERVAL", cfg.Auth.SweepInterval)
	cfg.Auth.RedirectHosts = envList("TRACKER_REDIRECT_HOSTS", cfg.Auth.RedirectHosts)
	cfg.Log.Level = envOr("TRACKER_LOG_LEVEL", cfg.Log.Level)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envList lit une liste séparée par des virgules.
func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
