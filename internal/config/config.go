package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Chat       ChatConfig
	Classifier ClassifierConfig
	TMDB       TMDBConfig
	AI         AIConfig
	Backend    BackendConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig("PORT", "8080")
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	classifier, err := loadClassifierConfig()
	if err != nil {
		return nil, err
	}

	tmdb, err := loadTMDBConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		Log:        loadLogConfig(),
		Chat:       chat,
		Classifier: classifier,
		TMDB:       tmdb,
		AI:         ai,
		Backend:    backend,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
	// RateLimit is the per-IP request budget per minute on /api. Zero disables it.
	RateLimit      int
	AllowedOrigins []string
}

func loadServerConfig(portKey, defaultPort string) (ServerConfig, error) {
	port := getEnvOrDefault(portKey, defaultPort)

	rateLimit := 120
	if override, err := parseOptionalIntEnv("API_RATE_LIMIT"); err != nil {
		return ServerConfig{}, err
	} else if override != nil {
		rateLimit = max(*override, 0)
	}

	origins := parseListEnv("CORS_ALLOWED_ORIGINS")

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, RateLimit: rateLimit, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid %s value: %q", portKey, port)
	}

	return ServerConfig{Addr: ":" + port, RateLimit: rateLimit, AllowedOrigins: origins}, nil
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "json"),
	}
}

// ChatConfig tunes the chat session state machine.
type ChatConfig struct {
	RequestTimeout    time.Duration
	PosterConcurrency int
	SessionTTL        time.Duration
}

func loadChatConfig() (ChatConfig, error) {
	timeout, err := parseDurationEnv("CHAT_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return ChatConfig{}, err
	}

	ttl, err := parseDurationEnv("CHAT_SESSION_TTL", 2*time.Hour)
	if err != nil {
		return ChatConfig{}, err
	}

	concurrency := 4
	if override, err := parseOptionalIntEnv("CHAT_POSTER_CONCURRENCY"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		concurrency = max(*override, 1)
	}

	return ChatConfig{
		RequestTimeout:    timeout,
		PosterConcurrency: concurrency,
		SessionTTL:        ttl,
	}, nil
}

// ClassifierConfig points at the emotion classification/recommendation endpoint.
type ClassifierConfig struct {
	URL     string
	Timeout time.Duration
}

func loadClassifierConfig() (ClassifierConfig, error) {
	timeout, err := parseDurationEnv("CLASSIFIER_TIMEOUT", 30*time.Second)
	if err != nil {
		return ClassifierConfig{}, err
	}

	return ClassifierConfig{
		URL:     getEnvOrDefault("CLASSIFIER_URL", "http://127.0.0.1:5000/chat"),
		Timeout: timeout,
	}, nil
}

// BaseURL returns the classifier origin, used to reach the stats and top10 feeds.
func (c ClassifierConfig) BaseURL() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return strings.TrimSuffix(c.URL, "/")
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String()
}

// TMDBConfig 描述 TMDB 元数据服务配置。
type TMDBConfig struct {
	APIKey    string
	BaseURL   string
	ImageBase string
	Language  string
	Timeout   time.Duration
	// RequestsPerSecond paces outgoing TMDB calls.
	RequestsPerSecond float64
	Burst             int
}

// Enabled 表示是否配置了 TMDB API key。
func (c TMDBConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadTMDBConfig() (TMDBConfig, error) {
	timeout, err := parseDurationEnv("TMDB_TIMEOUT", 10*time.Second)
	if err != nil {
		return TMDBConfig{}, err
	}

	rps := 20.0
	if override, err := parseOptionalFloatEnv("TMDB_RATE_LIMIT"); err != nil {
		return TMDBConfig{}, err
	} else if override != nil && *override > 0 {
		rps = *override
	}

	burst := 10
	if override, err := parseOptionalIntEnv("TMDB_BURST"); err != nil {
		return TMDBConfig{}, err
	} else if override != nil {
		burst = max(*override, 1)
	}

	return TMDBConfig{
		APIKey:            strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		BaseURL:           getEnvOrDefault("TMDB_BASE_URL", "https://api.themoviedb.org/3/"),
		ImageBase:         getEnvOrDefault("TMDB_IMAGE_BASE", "https://image.tmdb.org/t/p/w500"),
		Language:          getEnvOrDefault("TMDB_LANGUAGE", "ko-KR"),
		Timeout:           timeout,
		RequestsPerSecond: rps,
		Burst:             burst,
	}, nil
}

// BackendConfig configures the reference classification backend (cmd/classifier).
type BackendConfig struct {
	Server   ServerConfig
	MinTurns int
	MaxTurns int
}

func loadBackendConfig() (BackendConfig, error) {
	server, err := loadServerConfig("CLASSIFIER_PORT", "5000")
	if err != nil {
		return BackendConfig{}, err
	}

	minTurns := 2
	if override, err := parseOptionalIntEnv("CLASSIFIER_MIN_TURNS"); err != nil {
		return BackendConfig{}, err
	} else if override != nil {
		minTurns = max(*override, 1)
	}

	maxTurns := 4
	if override, err := parseOptionalIntEnv("CLASSIFIER_MAX_TURNS"); err != nil {
		return BackendConfig{}, err
	} else if override != nil {
		maxTurns = *override
	}
	if maxTurns < minTurns {
		maxTurns = minTurns
	}

	return BackendConfig{Server: server, MinTurns: minTurns, MaxTurns: maxTurns}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	// EmotionLLMEnabled lets the reference backend classify with the model instead of keywords.
	EmotionLLMEnabled   bool
	EmotionHistoryLimit int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	emotionLLM, err := parseBoolEnv("EMOTION_LLM_ENABLED", true)
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit := 6
	if override, err := parseOptionalIntEnv("EMOTION_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		historyLimit = *override
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,

		EmotionLLMEnabled:   emotionLLM,
		EmotionHistoryLimit: historyLimit,
	}, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return value, nil
}

// parseListEnv splits a comma separated variable, dropping blanks.
func parseListEnv(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
