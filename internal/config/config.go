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
	Server      ServerConfig
	AI          AIConfig
	DM          DMConfig
	Multiplayer MultiplayerConfig
	Player      PlayerConfig
	Storage     StorageConfig
	Image       ImageConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	dm, err := loadDMConfig()
	if err != nil {
		return nil, err
	}

	multiplayer, err := loadMultiplayerConfig()
	if err != nil {
		return nil, err
	}

	player, err := loadPlayerConfig()
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	image, err := loadImageConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:      server,
		AI:          ai,
		DM:          dm,
		Multiplayer: multiplayer,
		Player:      player,
		Storage:     storage,
		Image:       image,
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

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
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

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// DMConfig 描述叙事生成的运行参数。
type DMConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	Temperature    float32
	MaxTokens      int
	ShowCheckHints bool
}

func loadDMConfig() (DMConfig, error) {
	retries, err := parseIntEnv("DM_MAX_RETRIES", 3)
	if err != nil {
		return DMConfig{}, err
	}

	baseDelaySeconds, err := parseIntEnv("DM_RETRY_BASE_DELAY", 1)
	if err != nil {
		return DMConfig{}, err
	}

	maxTokens, err := parseIntEnv("DM_MAX_TOKENS", 800)
	if err != nil {
		return DMConfig{}, err
	}

	hints, err := parseBoolEnv("DM_CHECK_HINTS", true)
	if err != nil {
		return DMConfig{}, err
	}

	temperature := float32(0.8)
	if override, err := parseOptionalFloat32Env("DM_TEMPERATURE"); err != nil {
		return DMConfig{}, err
	} else if override != nil {
		temperature = *override
	}

	return DMConfig{
		MaxRetries:     retries,
		RetryBaseDelay: time.Duration(baseDelaySeconds) * time.Second,
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ShowCheckHints: hints,
	}, nil
}

// MultiplayerConfig 描述多人回合收集的参数。
type MultiplayerConfig struct {
	BatchEnabled     bool
	RoundWindow      time.Duration
	ReminderInterval time.Duration
}

func loadMultiplayerConfig() (MultiplayerConfig, error) {
	enabled, err := parseBoolEnv("ROUND_BATCH_ENABLED", true)
	if err != nil {
		return MultiplayerConfig{}, err
	}

	windowSeconds, err := parseIntEnv("ROUND_WINDOW", 60)
	if err != nil {
		return MultiplayerConfig{}, err
	}

	reminderSeconds, err := parseIntEnv("ROUND_REMINDER", 20)
	if err != nil {
		return MultiplayerConfig{}, err
	}

	return MultiplayerConfig{
		BatchEnabled:     enabled,
		RoundWindow:      time.Duration(windowSeconds) * time.Second,
		ReminderInterval: time.Duration(reminderSeconds) * time.Second,
	}, nil
}

// PlayerConfig 描述角色创建与加点的边界。
type PlayerConfig struct {
	FreePoints   int
	MinAttribute int
	MaxAttribute int
}

func loadPlayerConfig() (PlayerConfig, error) {
	freePoints, err := parseIntEnv("PLAYER_FREE_POINTS", 30)
	if err != nil {
		return PlayerConfig{}, err
	}

	minAttr, err := parseIntEnv("PLAYER_MIN_ATTRIBUTE", 3)
	if err != nil {
		return PlayerConfig{}, err
	}

	maxAttr, err := parseIntEnv("PLAYER_MAX_ATTRIBUTE", 18)
	if err != nil {
		return PlayerConfig{}, err
	}

	return PlayerConfig{
		FreePoints:   freePoints,
		MinAttribute: minAttr,
		MaxAttribute: maxAttr,
	}, nil
}

// StorageConfig 描述持久化后端。
type StorageConfig struct {
	Backend       string // file | redis
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MaxHistory    int
}

func loadStorageConfig() (StorageConfig, error) {
	backend := getEnvOrDefault("STORAGE_BACKEND", "file")
	if backend != "file" && backend != "redis" {
		return StorageConfig{}, fmt.Errorf("invalid STORAGE_BACKEND value: %q", backend)
	}

	redisDB, err := parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return StorageConfig{}, err
	}

	maxHistory, err := parseIntEnv("SESSION_MAX_HISTORY", 100)
	if err != nil {
		return StorageConfig{}, err
	}

	return StorageConfig{
		Backend:       backend,
		Dir:           getEnvOrDefault("STORAGE_DIR", "data"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		RedisDB:       redisDB,
		MaxHistory:    maxHistory,
	}, nil
}

// ImageConfig 描述高潮场景配图功能。
type ImageConfig struct {
	Enabled bool
}

func loadImageConfig() (ImageConfig, error) {
	enabled, err := parseBoolEnv("IMAGE_ENABLED", false)
	if err != nil {
		return ImageConfig{}, err
	}
	return ImageConfig{Enabled: enabled}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
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

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
