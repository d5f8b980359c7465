package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del cliente de chat.
type Config struct {
	APIHost          string        `env:"API_HOST" envDefault:"http://localhost:8080"`
	InterviewHost    string        `env:"INTERVIEW_HOST"`
	APIToken         string        `env:"API_TOKEN"`
	APIRefreshToken  string        `env:"API_REFRESH_TOKEN"`
	ChatModel        string        `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	StreamReadBuffer int           `env:"STREAM_READ_BUFFER" envDefault:"4096"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"warn"`
}

// ServerConfig es la configuración del backend de desarrollo.
type ServerConfig struct {
	HTTPPort             string        `env:"HTTP_PORT" envDefault:"8080"`
	JWTSecret            string        `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int           `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int           `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"10080"`
	DevUsers             []string      `env:"DEV_USERS" envSeparator:","`
	RedisAddr            string        `env:"REDIS_ADDR"`
	RedisPassword        string        `env:"REDIS_PASSWORD"`
	RedisDB              int           `env:"REDIS_DB" envDefault:"0"`
	ReplyChunkDelay      time.Duration `env:"REPLY_CHUNK_DELAY" envDefault:"40ms"`
}

// InterviewBaseURL devuelve el host de entrevistas, o API_HOST si no se configuró.
func (c *Config) InterviewBaseURL() string {
	if c == nil {
		return ""
	}
	if c.InterviewHost != "" {
		return c.InterviewHost
	}
	return c.APIHost
}

// LoadConfig carga la configuración del cliente desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadServerConfig carga la configuración del backend de desarrollo.
func LoadServerConfig() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
