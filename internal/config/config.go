package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the client needs from the environment.
type Config struct {
	APIURL string `env:"CHAT_API_URL" envDefault:"http://localhost:3000/api"`
	Env    string `env:"CHAT_ENV" envDefault:"development"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile   bool   `env:"LOG_FILE" envDefault:"false"`

	SocketTransports        []string      `env:"SOCKET_TRANSPORTS" envDefault:"websocket,polling" envSeparator:","`
	SocketReconnectAttempts int           `env:"SOCKET_RECONNECT_ATTEMPTS" envDefault:"5"`
	SocketReconnectDelay    time.Duration `env:"SOCKET_RECONNECT_DELAY" envDefault:"1s"`
	SocketHandshakeTimeout  time.Duration `env:"SOCKET_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	LoginConnectDelay       time.Duration `env:"LOGIN_CONNECT_DELAY" envDefault:"1s"`

	PrefsPath string `env:"PREFS_PATH"`
	RedisURL  string `env:"REDIS_URL"`
}

var defaultEnvLoaded sync.Once

// Load reads a .env file once (if present) and parses the environment into cfg.
func Load(cfg *Config) error {
	defaultEnvLoaded.Do(func() {
		// the .env file is optional
		_ = godotenv.Load()
	})
	if cfg == nil {
		return ErrNilPointer
	}

	if err := env.Parse(cfg); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	return cfg.Validate()
}

// Validate normalizes transport names and the log format and checks the API URL.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidAPIURL, c.APIURL)
	}
	c.APIURL = strings.TrimSuffix(c.APIURL, "/")

	transports := make([]string, 0, len(c.SocketTransports))
	for _, t := range c.SocketTransports {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if t != "websocket" && t != "polling" {
			return fmt.Errorf("%w: %q", ErrInvalidTransport, t)
		}
		transports = append(transports, t)
	}
	if len(transports) == 0 {
		return ErrNoTransports
	}
	c.SocketTransports = transports

	if c.SocketReconnectAttempts < 0 {
		c.SocketReconnectAttempts = 0
	}

	switch c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat)); c.LogFormat {
	case "":
		c.LogFormat = "text"
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}
	return nil
}
