package config

import (
	"fmt"
	"time"
)

// Config represents the global configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Security  SecurityConfig  `mapstructure:"security"`
	Store     StoreConfig     `mapstructure:"store"`
	Draw      DrawConfig      `mapstructure:"draw"`
	Preheat   PreheatConfig   `mapstructure:"preheat"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderMB  int           `mapstructure:"max_header_mb"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Path            string        `mapstructure:"path"`
	RuntimeInterval time.Duration `mapstructure:"runtime_interval"`
}

// RateLimitConfig represents rate limiting configuration
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	PerUser struct {
		RPS   float64 `mapstructure:"rps"`
		Burst int     `mapstructure:"burst"`
	} `mapstructure:"per_user"`
	PerIP struct {
		RPS   float64 `mapstructure:"rps"`
		Burst int     `mapstructure:"burst"`
	} `mapstructure:"per_ip"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	JWT struct {
		Secret     string        `mapstructure:"secret"`
		Expire     time.Duration `mapstructure:"expire"`
		RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
		Issuer     string        `mapstructure:"issuer"`
	} `mapstructure:"jwt"`
	CORS struct {
		Enabled      bool     `mapstructure:"enabled"`
		AllowOrigins []string `mapstructure:"allow_origins"`
	} `mapstructure:"cors"`
	// Admin names the account ensured at startup with the admin role. Leave
	// the username empty to skip bootstrapping.
	Admin struct {
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"admin"`
}

// StoreConfig configures the ordered store checkpoint cycle
type StoreConfig struct {
	Checkpoint struct {
		Dir        string        `mapstructure:"dir"`
		Filename   string        `mapstructure:"filename"`
		Interval   time.Duration `mapstructure:"interval"`
		MaxRetries int           `mapstructure:"max_retries"`
		RetryDelay time.Duration `mapstructure:"retry_delay"`
	} `mapstructure:"checkpoint"`
}

// DrawConfig represents draw business configuration
type DrawConfig struct {
	QueueCapacity    int   `mapstructure:"queue_capacity"`
	NodeID           int64 `mapstructure:"node_id"`
	DefaultDrawQuota int   `mapstructure:"default_draw_quota"`
	DefaultWinQuota  int   `mapstructure:"default_win_quota"`
}

// PreheatConfig configures the background activity preheater
type PreheatConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Lookahead time.Duration `mapstructure:"lookahead"`
}

// GetAddr returns the server address
func (s *ServerConfig) GetAddr() string {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Security.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.Draw.QueueCapacity <= 0 {
		return fmt.Errorf("invalid queue capacity: %d", c.Draw.QueueCapacity)
	}

	if c.Draw.NodeID < 0 || c.Draw.NodeID > 1023 {
		return fmt.Errorf("invalid node id: %d", c.Draw.NodeID)
	}

	return nil
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.MaxHeaderMB == 0 {
		c.Server.MaxHeaderMB = 1
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.RuntimeInterval == 0 {
		c.Metrics.RuntimeInterval = 15 * time.Second
	}

	if c.RateLimit.PerUser.RPS == 0 {
		c.RateLimit.PerUser.RPS = 5
	}
	if c.RateLimit.PerUser.Burst == 0 {
		c.RateLimit.PerUser.Burst = 10
	}
	if c.RateLimit.PerIP.RPS == 0 {
		c.RateLimit.PerIP.RPS = 20
	}
	if c.RateLimit.PerIP.Burst == 0 {
		c.RateLimit.PerIP.Burst = 40
	}

	if c.Security.JWT.Expire == 0 {
		c.Security.JWT.Expire = 2 * time.Hour
	}
	if c.Security.JWT.RefreshTTL == 0 {
		c.Security.JWT.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Security.JWT.Issuer == "" {
		c.Security.JWT.Issuer = "prizedraw"
	}

	if c.Store.Checkpoint.Dir == "" {
		c.Store.Checkpoint.Dir = "./data"
	}
	if c.Store.Checkpoint.Filename == "" {
		c.Store.Checkpoint.Filename = "store.json"
	}
	if c.Store.Checkpoint.Interval == 0 {
		c.Store.Checkpoint.Interval = 30 * time.Second
	}
	if c.Store.Checkpoint.MaxRetries == 0 {
		c.Store.Checkpoint.MaxRetries = 3
	}
	if c.Store.Checkpoint.RetryDelay == 0 {
		c.Store.Checkpoint.RetryDelay = time.Second
	}

	if c.Draw.QueueCapacity == 0 {
		c.Draw.QueueCapacity = 4096
	}
	if c.Draw.DefaultDrawQuota == 0 {
		c.Draw.DefaultDrawQuota = 3
	}
	if c.Draw.DefaultWinQuota == 0 {
		c.Draw.DefaultWinQuota = 1
	}

	if c.Preheat.Interval == 0 {
		c.Preheat.Interval = 10 * time.Second
	}
	if c.Preheat.Lookahead == 0 {
		c.Preheat.Lookahead = time.Minute
	}
}
