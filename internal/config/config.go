package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	Auth   AuthConfig
	Relay  RelayConfig
	Store  StoreConfig
	Audio  AudioConfig
	AI     AIConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	relay, err := loadRelayConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	audio, err := loadAudioConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Auth:   auth,
		Relay:  relay,
		Store:  store,
		Audio:  audio,
		AI:     ai,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AuthConfig 描述连接鉴权配置。
type AuthConfig struct {
	JWTSecret string
}

func loadAuthConfig() (AuthConfig, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return AuthConfig{}, fmt.Errorf("JWT_SECRET is required")
	}
	return AuthConfig{JWTSecret: secret}, nil
}

// RelayConfig 描述上游 AI 管线的连接配置。
type RelayConfig struct {
	// UpstreamURL 为空时使用内置的本地管线。
	UpstreamURL string
	DialTimeout time.Duration
}

func loadRelayConfig() (RelayConfig, error) {
	timeout, err := parseOptionalIntEnv("PIPELINE_DIAL_TIMEOUT")
	if err != nil {
		return RelayConfig{}, err
	}
	dialTimeout := 5 * time.Second
	if timeout != nil {
		if *timeout <= 0 {
			return RelayConfig{}, fmt.Errorf("PIPELINE_DIAL_TIMEOUT must be positive, got %d", *timeout)
		}
		dialTimeout = time.Duration(*timeout) * time.Second
	}

	return RelayConfig{
		UpstreamURL: strings.TrimSpace(os.Getenv("PIPELINE_WS_URL")),
		DialTimeout: dialTimeout,
	}, nil
}

// StoreConfig 描述会话与历史存储配置。
type StoreConfig struct {
	// RedisAddr 为空时退回进程内存储。
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionTTL  time.Duration
	HistoryTTL  time.Duration
	MaxSessions int
}

func loadStoreConfig() (StoreConfig, error) {
	db, err := parseOptionalIntEnv("REDIS_DB")
	if err != nil {
		return StoreConfig{}, err
	}
	redisDB := 0
	if db != nil {
		redisDB = *db
	}

	sessionTTL, err := parseDurationEnv("SESSION_TTL", 7*24*time.Hour)
	if err != nil {
		return StoreConfig{}, err
	}

	historyTTL, err := parseDurationEnv("HISTORY_TTL", 24*time.Hour)
	if err != nil {
		return StoreConfig{}, err
	}

	maxSessions := 3
	if override, err := parseOptionalIntEnv("MAX_SESSIONS_PER_GOAL"); err != nil {
		return StoreConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return StoreConfig{}, fmt.Errorf("MAX_SESSIONS_PER_GOAL must be at least 1, got %d", *override)
		}
		maxSessions = *override
	}

	return StoreConfig{
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		SessionTTL:    sessionTTL,
		HistoryTTL:    historyTTL,
		MaxSessions:   maxSessions,
	}, nil
}

// AudioConfig 描述音频采集管线配置。
type AudioConfig struct {
	TargetSampleRate  int
	FrameSize         int
	TelemetryInterval time.Duration
}

func loadAudioConfig() (AudioConfig, error) {
	targetRate := 16000
	if override, err := parseOptionalIntEnv("AUDIO_TARGET_SAMPLE_RATE"); err != nil {
		return AudioConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return AudioConfig{}, fmt.Errorf("AUDIO_TARGET_SAMPLE_RATE must be positive, got %d", *override)
		}
		targetRate = *override
	}

	frameSize := 1600
	if override, err := parseOptionalIntEnv("AUDIO_FRAME_SIZE"); err != nil {
		return AudioConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return AudioConfig{}, fmt.Errorf("AUDIO_FRAME_SIZE must be positive, got %d", *override)
		}
		frameSize = *override
	}

	interval, err := parseDurationEnv("AUDIO_TELEMETRY_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return AudioConfig{}, err
	}

	return AudioConfig{
		TargetSampleRate:  targetRate,
		FrameSize:         frameSize,
		TelemetryInterval: interval,
	}, nil
}

// AIConfig 描述本地管线使用的大模型配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
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
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, nil
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
