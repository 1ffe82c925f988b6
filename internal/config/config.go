package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	ReadLimit  int64  `mapstructure:"read_limit"`
	Secret     string `mapstructure:"secret"`

	// Collaborator persistence API.
	APIBase string `mapstructure:"api_base"`

	// Session renewal fires this long before token expiry.
	RenewMargin time.Duration `mapstructure:"renew_margin"`

	// Identical notifications inside this window collapse to one.
	DedupWindow time.Duration `mapstructure:"dedup_window"`

	// Rooms idle past the threshold are evicted by the sweep.
	RoomIdleAfter time.Duration `mapstructure:"room_idle_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// Message flood limiting.
	MessageLimit    int           `mapstructure:"message_limit"`
	MessageInterval time.Duration `mapstructure:"message_interval"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("secret", "change-me")
	v.SetDefault("api_base", "http://localhost:3000")
	v.SetDefault("renew_margin", "60s")
	v.SetDefault("dedup_window", "5s")
	v.SetDefault("room_idle_after", "10m")
	v.SetDefault("sweep_interval", "1m")
	v.SetDefault("message_limit", 20)
	v.SetDefault("message_interval", "10s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath)
	return &cfg, nil
}
