package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const EnvPrefix = "CHAT_"

// EnvConfig CHAT_* 环境变量；未设置的字段保持 nil
type EnvConfig struct {
	ServerIP     *string        `env:"SERVER_IP"`
	ServerPort   *int           `env:"SERVER_PORT"`
	WSAddr       *string        `env:"WS_ADDR"`
	MetricsAddr  *string        `env:"METRICS_ADDR"`
	LogLevel     *string        `env:"LOG_LEVEL"`
	ReadTimeout  *time.Duration `env:"READ_TIMEOUT"`
	WriteTimeout *time.Duration `env:"WRITE_TIMEOUT"`
	MaxFrameSize *int           `env:"MAX_FRAME_SIZE"`
}

// LoadEnvConfig 先加载当前目录下的 .env（不存在则忽略，不覆盖已有变量），再解析 CHAT_* 变量
func LoadEnvConfig(dotenvFiles ...string) (EnvConfig, error) {
	var ec EnvConfig
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ec, err
		}
	}
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: EnvPrefix}); err != nil {
		return ec, err
	}
	return ec, nil
}

// ApplyEnvConfig 覆盖配置文件的值，但不覆盖命令行显式设置的 flag
func ApplyEnvConfig(cfg *Config, ec EnvConfig, changed map[string]bool) {
	s := newConfigSetter(changed)
	setPtr(s, "server-ip", ec.ServerIP, &cfg.Host)
	setPtr(s, "server-port", ec.ServerPort, &cfg.Port)
	setPtr(s, "ws-addr", ec.WSAddr, &cfg.WSAddr)
	setPtr(s, "metrics-addr", ec.MetricsAddr, &cfg.MetricsAddr)
	setPtr(s, "log-level", ec.LogLevel, &cfg.LogLevel)
	setPtr(s, "read-timeout", ec.ReadTimeout, &cfg.ReadTimeout)
	setPtr(s, "write-timeout", ec.WriteTimeout, &cfg.WriteTimeout)
	setPtr(s, "max-frame-size", ec.MaxFrameSize, &cfg.MaxFrameSize)
}

func setPtr[T any](s *configSetter, flag string, value *T, dst *T) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}
