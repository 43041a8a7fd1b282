package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Port          string
	AllowedOrigin string
	// Provider selects the generative-model backend: "gemini" or "openai".
	Provider string
	// Gemini
	GeminiAPIKey     string
	GeminiTextModel  string
	GeminiImageModel string
	GeminiTTSModel   string
	GeminiTTSVoice   string
	GeminiVideoModel string
	// OpenAI
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIImageModel string
	OpenAITTSModel   string
	OpenAITTSVoice   string
	// Optional prompts override; the embedded prompt set is used when empty
	PromptsFile string
	// Headline source for the news briefing; the static sample source is used when empty
	NewsAPIURL   string
	NewsAPIKey   string
	NewsCountry  string
	NewsCacheTTL time.Duration
	// Optional Redis headline cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Timeouts
	RequestTimeout    time.Duration
	VideoTimeout      time.Duration
	VideoPollInterval time.Duration
	// Sessions
	SessionTTL   time.Duration
	MaxBodyBytes int64
	// Logging
	LogLevel  string
	LogPretty bool
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:              getEnvDefault("PORT", "8080"),
		AllowedOrigin:     getEnvDefault("ALLOWED_ORIGIN", "*"),
		Provider:          strings.ToLower(getEnvDefault("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:      firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		GeminiTextModel:   getEnvDefault("GEMINI_TEXT_MODEL", "gemini-2.0-flash"),
		GeminiImageModel:  getEnvDefault("GEMINI_IMAGE_MODEL", "gemini-2.0-flash-preview-image-generation"),
		GeminiTTSModel:    getEnvDefault("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		GeminiTTSVoice:    getEnvDefault("GEMINI_TTS_VOICE", "Algenib"),
		GeminiVideoModel:  getEnvDefault("GEMINI_VIDEO_MODEL", "veo-2.0-generate-001"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIImageModel:  getEnvDefault("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		OpenAITTSModel:    getEnvDefault("OPENAI_TTS_MODEL", "gpt-4o-mini-tts"),
		OpenAITTSVoice:    getEnvDefault("OPENAI_TTS_VOICE", "nova"),
		PromptsFile:       os.Getenv("PROMPTS_FILE"),
		NewsAPIURL:        os.Getenv("NEWS_API_URL"),
		NewsAPIKey:        os.Getenv("NEWS_API_KEY"),
		NewsCountry:       getEnvDefault("NEWS_COUNTRY", "us"),
		NewsCacheTTL:      getEnvDurationDefault("NEWS_CACHE_TTL", 10*time.Minute),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvIntDefault("REDIS_DB", 0),
		RequestTimeout:    getEnvDurationDefault("REQUEST_TIMEOUT", 60*time.Second),
		VideoTimeout:      getEnvDurationDefault("VIDEO_TIMEOUT", 5*time.Minute),
		VideoPollInterval: getEnvDurationDefault("VIDEO_POLL_INTERVAL", 10*time.Second),
		SessionTTL:        getEnvDurationDefault("SESSION_TTL", 30*time.Minute),
		MaxBodyBytes:      int64(getEnvIntDefault("MAX_BODY_BYTES", 32<<20)),
		LogLevel:          getEnvDefault("LOG_LEVEL", "info"),
		LogPretty:         getEnvBoolDefault("LOG_PRETTY", false),
	}
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			log.Warn().Msg("GEMINI_API_KEY is not set; API calls will fail until provided")
		}
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			log.Warn().Msg("OPENAI_API_KEY is not set; API calls will fail until provided")
		}
	default:
		log.Warn().Str("provider", cfg.Provider).Msg("unknown LLM_PROVIDER, falling back to gemini")
		cfg.Provider = ProviderGemini
	}
	return cfg
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvIntDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}
