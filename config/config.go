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
)

// Config 服务端运行配置（环境变量 / .env，命令行参数可覆盖地址）
type Config struct {
	// 网络
	GameAddr  string // GAME_ADDR
	AdminAddr string // ADMIN_ADDR，为空则不启动管理接口

	// Tick 与发送
	TickPeriod  time.Duration // TICK_PERIOD
	SendTimeout time.Duration // SEND_TIMEOUT，单帧写出的最长等待

	// 名字清洗
	NameMaxWidth int    // NAME_MAX_WIDTH，按显示宽度计
	DefaultName  string // DEFAULT_NAME

	// 未预期的 I/O 错误是否终止整个进程；false 时只移除出错的客户端
	FatalOnUnexpectedIO bool // FATAL_ON_UNEXPECTED_IO

	// 控制消息（JoinTeam/SetName）限流，ControlRate<=0 关闭
	ControlRate  float64 // CONTROL_RATE，每秒
	ControlBurst int     // CONTROL_BURST

	// 日志
	LogFile    string // LOG_FILE
	LogLevel   string // LOG_LEVEL
	LogConsole bool   // LOG_CONSOLE

	// 名单镜像，RedisURL 为空则关闭
	RedisURL    string // REDIS_URL
	RedisPrefix string // REDIS_PREFIX
}

// Default 内置默认值
func Default() *Config {
	return &Config{
		GameAddr:            ":4444",
		AdminAddr:           ":8080",
		TickPeriod:          10 * time.Millisecond,
		SendTimeout:         2 * time.Second,
		NameMaxWidth:        20,
		DefaultName:         "Anonymous",
		FatalOnUnexpectedIO: true,
		ControlRate:         10,
		ControlBurst:        20,
		LogFile:             "server.log",
		LogLevel:            "info",
		LogConsole:          true,
		RedisPrefix:         "teamarena",
	}
}

// Load 读取 .env（可缺省）与环境变量
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv 只读环境变量，未设置的项取默认值
func FromEnv() (*Config, error) {
	cfg := Default()

	if err := loadEnvString(&cfg.GameAddr, "GAME_ADDR"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&cfg.AdminAddr, "ADMIN_ADDR"); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&cfg.TickPeriod, "TICK_PERIOD"); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&cfg.SendTimeout, "SEND_TIMEOUT"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&cfg.NameMaxWidth, "NAME_MAX_WIDTH"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&cfg.DefaultName, "DEFAULT_NAME"); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&cfg.FatalOnUnexpectedIO, "FATAL_ON_UNEXPECTED_IO"); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&cfg.ControlRate, "CONTROL_RATE"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&cfg.ControlBurst, "CONTROL_BURST"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&cfg.LogFile, "LOG_FILE"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&cfg.LogLevel, "LOG_LEVEL"); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&cfg.LogConsole, "LOG_CONSOLE"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&cfg.RedisURL, "REDIS_URL"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&cfg.RedisPrefix, "REDIS_PREFIX"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvString 等辅助函数：变量存在时覆盖 target，否则保持默认值。
// 用 LookupEnv 区分"未设置"与"设置为空"（ADMIN_ADDR= 表示关闭）。
func loadEnvString(target *string, key string) error {
	if value, ok := os.LookupEnv(key); ok {
		*target = strings.TrimSpace(value)
	}
	return nil
}

func loadEnvInt(target *int, key string) error {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func loadEnvFloat(target *float64, key string) error {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func loadEnvBool(target *bool, key string) error {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string) error {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

// Validate 一次性收集所有不合法的配置项
func (c *Config) Validate() error {
	var problems []string

	if c.GameAddr == "" {
		problems = append(problems, "GAME_ADDR must not be empty")
	}
	if c.TickPeriod <= 0 {
		problems = append(problems, "TICK_PERIOD must be positive")
	}
	if c.SendTimeout < 0 {
		problems = append(problems, "SEND_TIMEOUT must not be negative")
	}
	if c.NameMaxWidth < 1 {
		problems = append(problems, "NAME_MAX_WIDTH must be at least 1")
	}
	if strings.TrimSpace(c.DefaultName) == "" {
		problems = append(problems, "DEFAULT_NAME must not be blank")
	}
	if c.ControlRate > 0 && c.ControlBurst < 1 {
		problems = append(problems, "CONTROL_BURST must be at least 1 when CONTROL_RATE is set")
	}
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.LogLevel) {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLevels, ", ")))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TicksPerSecond 由 Tick 周期换算
func (c *Config) TicksPerSecond() float64 {
	return float64(time.Second) / float64(c.TickPeriod)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
