package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hongjun500/chat-relay/pkg/logger"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8888
)

// Config holds the relay server configuration.
// 监听地址只在启动前生效，运行中修改不支持；热加载只作用于日志级别。
type Config struct {
	Host         string
	Port         int
	WSAddr       string // 为空则不启用 WebSocket
	MetricsAddr  string // 为空则不启用 /metrics 等管理接口
	LogLevel     string
	ReadTimeout  time.Duration // 0 表示不设读超时
	WriteTimeout time.Duration // 0 表示不设写超时
	MaxFrameSize int           // 0 表示只受 4 字节帧头限制
}

// Default returns a Config with default values.
func Default() Config {
	return Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		LogLevel: "info",
	}
}

// Addr 返回 host:port
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("server-ip is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server-port out of range: %d", c.Port)
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("read-timeout must not be negative")
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("write-timeout must not be negative")
	}
	if c.MaxFrameSize < 0 {
		return fmt.Errorf("max-frame-size must not be negative")
	}
	return nil
}

// configSetter applies values while respecting flag precedence:
// values are only written when the corresponding flag was not set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	if changed == nil {
		changed = map[string]bool{}
	}
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// Load 按 默认值 → 配置文件 → .env/环境变量 的顺序合并到 cfg，
// changed 中的 flag 已由命令行设置，不会被覆盖。
func Load(cfg *Config, path string, changed map[string]bool) error {
	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	ec, err := LoadEnvConfig()
	if err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	ApplyEnvConfig(cfg, ec, changed)
	return cfg.Validate()
}
