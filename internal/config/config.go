package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	SessionBackend    string `env:"SESSION_BACKEND" envDefault:"memory"`
	SessionTTLSeconds int    `env:"SESSION_TTL_SECONDS" envDefault:"7200"`

	AudioDir       string `env:"AUDIO_DIR" envDefault:"saved_audio"`
	AudioMaxFrames int    `env:"AUDIO_MAX_FRAMES" envDefault:"4096"`
	AudioMaxBytes  int64  `env:"AUDIO_MAX_BYTES" envDefault:"33554432"`

	CollaboratorTimeoutSeconds int `env:"COLLABORATOR_TIMEOUT_SECONDS" envDefault:"60"`
	FinalizeTimeoutSeconds     int `env:"FINALIZE_TIMEOUT_SECONDS" envDefault:"120"`

	LLMBaseURL         string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMAPIKey          string `env:"LLM_API_KEY"`
	LLMModel           string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	InterviewerName    string `env:"INTERVIEWER_NAME" envDefault:"Anna"`
	SpeechBaseURL      string `env:"SPEECH_BASE_URL" envDefault:"https://api.openai.com/v1"`
	SpeechAPIKey       string `env:"SPEECH_API_KEY"`
	TranscriptionModel string `env:"STT_MODEL" envDefault:"whisper-1"`
	SpeechModel        string `env:"TTS_MODEL" envDefault:"tts-1"`
	SpeechVoice        string `env:"TTS_VOICE" envDefault:"alloy"`
	SpeechFormat       string `env:"TTS_FORMAT" envDefault:"mp3"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Interviews a single client IP may start per minute. Zero disables the limit.
	StartRateLimitPerMin int `env:"START_RATE_LIMIT_PER_MIN" envDefault:"10"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SessionTTL is zero when expiry is disabled.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) CollaboratorTimeout() time.Duration {
	return time.Duration(c.CollaboratorTimeoutSeconds) * time.Second
}

func (c *Config) FinalizeTimeout() time.Duration {
	return time.Duration(c.FinalizeTimeoutSeconds) * time.Second
}

func (c *Config) Validate() error {
	switch c.SessionBackend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be one of %q or %q (got %q)",
			SessionBackendMemory, SessionBackendRedis, c.SessionBackend)
	}

	if c.SessionTTLSeconds < 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be non-negative")
	}
	if c.CollaboratorTimeoutSeconds <= 0 {
		return fmt.Errorf("COLLABORATOR_TIMEOUT_SECONDS must be positive")
	}
	if c.FinalizeTimeoutSeconds <= 0 {
		return fmt.Errorf("FINALIZE_TIMEOUT_SECONDS must be positive")
	}
	if strings.TrimSpace(c.AudioDir) == "" {
		return fmt.Errorf("AUDIO_DIR must not be empty")
	}
	if c.AudioMaxFrames < 0 || c.AudioMaxBytes < 0 {
		return fmt.Errorf("AUDIO_MAX_FRAMES and AUDIO_MAX_BYTES must be non-negative")
	}
	if c.StartRateLimitPerMin < 0 {
		return fmt.Errorf("START_RATE_LIMIT_PER_MIN must be non-negative")
	}

	if c.LLMAPIKey == "" {
		log.Warn().Msg("LLM_API_KEY is empty: question generation and evaluation requests will be unauthenticated")
	}
	if c.SpeechAPIKey == "" {
		log.Warn().Msg("SPEECH_API_KEY is empty: transcription and synthesis requests will be unauthenticated")
	}
	if c.RedisURL == "" {
		log.Warn().Msg("REDIS_URL is empty: events and rate limits are local to this instance")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
