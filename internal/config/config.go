package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mpromonet/go-whep-play/internal/domain"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultICEServer      = "stun:stun.l.google.com:19302"
	DefaultMaxRetries     = 5
	DefaultBackoffBase    = 500 * time.Millisecond
	DefaultBackoffCap     = 30 * time.Second
	DefaultConnectedReset = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Config holds the player configuration. Values are fixed at load time.
type Config struct {
	URL            string
	Token          string
	ICEServers     []domain.ICEServer
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	ConnectedReset time.Duration
	RequestTimeout time.Duration
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values. A
// non-empty url argument overrides WHEP_URL.
func Load(url string) (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	if url == "" {
		url = os.Getenv("WHEP_URL")
	}
	if url == "" {
		return nil, fmt.Errorf("WHEP_URL environment variable or endpoint argument is required")
	}

	cfg := &Config{
		URL:   url,
		Token: os.Getenv("WHEP_TOKEN"),
	}

	var err error
	if cfg.MaxRetries, err = envInt("WHEP_MAX_RETRIES", DefaultMaxRetries); err != nil {
		return nil, err
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("WHEP_MAX_RETRIES must not be negative")
	}
	if cfg.BackoffBase, err = envDuration("WHEP_BACKOFF_BASE", DefaultBackoffBase); err != nil {
		return nil, err
	}
	if cfg.BackoffCap, err = envDuration("WHEP_BACKOFF_CAP", DefaultBackoffCap); err != nil {
		return nil, err
	}
	if cfg.BackoffBase <= 0 || cfg.BackoffCap < cfg.BackoffBase {
		return nil, fmt.Errorf("backoff range %s..%s is invalid", cfg.BackoffBase, cfg.BackoffCap)
	}
	if cfg.ConnectedReset, err = envDuration("WHEP_CONNECTED_RESET", DefaultConnectedReset); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = envDuration("WHEP_REQUEST_TIMEOUT", DefaultRequestTimeout); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("WHEP_REQUEST_TIMEOUT must be positive")
	}

	cfg.ICEServers = parseICEServers(
		os.Getenv("WHEP_ICE_SERVERS"),
		os.Getenv("WHEP_ICE_USERNAME"),
		os.Getenv("WHEP_ICE_CREDENTIAL"),
	)

	return cfg, nil
}

func parseICEServers(list, username, credential string) []domain.ICEServer {
	if list == "" {
		list = DefaultICEServer
	}
	var servers []domain.ICEServer
	for _, u := range strings.Split(list, ",") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		s := domain.ICEServer{URL: u}
		if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
			s.Username = username
			s.Credential = credential
		}
		servers = append(servers, s)
	}
	return servers
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
