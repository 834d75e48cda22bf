// Package config loads vaconsole settings from a YAML file, VACONSOLE_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// 命令行标志名
const (
	FlagConfig        = "config"
	FlagServerURL     = "server-url"
	FlagOutput        = "output"
	FlagLogLevel      = "log-level"
	FlagListen        = "listen"
	FlagPageSize      = "page-size"
	FlagInterval      = "interval"
	FlagNoAutoRefresh = "no-auto-refresh"
	FlagTimeout       = "timeout"
)

const envPrefix = "VACONSOLE_"

// ByteSize 支持 "500MiB"、"1.5 GB" 或纯数字字节数
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseByteSize(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*b = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b ByteSize) MarshalYAML() (any, error) {
	return humanize.IBytes(uint64(b)), nil
}

// ParseByteSize 解析人类可读的字节数
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// UploadConfig 上传相关配置
type UploadConfig struct {
	MaxVideoSize ByteSize `yaml:"max_video_size" json:"max_video_size"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `yaml:"level" json:"level"`
	Environment string `yaml:"environment" json:"environment"`
	File        string `yaml:"file" json:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days" json:"max_age_days"`
}

// Config 保存 vaconsole 全部配置
type Config struct {
	ServerURL       string        `yaml:"server_url" json:"server_url"`
	Listen          string        `yaml:"listen" json:"listen"`
	PageSize        int           `yaml:"page_size" json:"page_size"`
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
	AutoRefresh     bool          `yaml:"auto_refresh" json:"auto_refresh"`
	NoticeDuration  time.Duration `yaml:"notice_duration" json:"notice_duration"`
	// RequestTimeout 为 0 时不设超时
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	Upload         UploadConfig  `yaml:"upload" json:"upload"`
	Log            LogConfig     `yaml:"log" json:"log"`

	Output string `yaml:"-" json:"-"`
	// Path 实际读取的配置文件，未读取时为空
	Path string `yaml:"-" json:"-"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		ServerURL:       "http://localhost:5000/api",
		Listen:          ":8090",
		PageSize:        10,
		RefreshInterval: 3 * time.Second,
		AutoRefresh:     true,
		NoticeDuration:  5 * time.Second,
		Upload:          UploadConfig{MaxVideoSize: 500 * humanize.MiByte},
		Log:             LogConfig{Level: "info", Environment: "dev"},
		Output:          "text",
	}
}

// DefaultPath 返回 ~/.vaconsole/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vaconsole", "config.yaml"), nil
}

// Load 按 配置文件 < 环境变量 < 命令行标志 的优先级加载并校验配置
// cmd 可以为 nil（只读文件和环境变量）
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Default()

	path, explicit := flagString(cmd, FlagConfig), true
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path == "" {
		explicit = false
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := cfg.loadFile(path, explicit); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.applyFlags(cmd); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.Path = path
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(envPrefix + "SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv(envPrefix + "LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(envPrefix + "PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPAGE_SIZE: %w", envPrefix, err)
		}
		c.PageSize = n
	}
	if err := envDuration("REFRESH_INTERVAL", &c.RefreshInterval); err != nil {
		return err
	}
	if err := envDuration("NOTICE_DURATION", &c.NoticeDuration); err != nil {
		return err
	}
	if err := envDuration("REQUEST_TIMEOUT", &c.RequestTimeout); err != nil {
		return err
	}
	if v := os.Getenv(envPrefix + "AUTO_REFRESH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sAUTO_REFRESH: %w", envPrefix, err)
		}
		c.AutoRefresh = b
	}
	if v := os.Getenv(envPrefix + "MAX_VIDEO_SIZE"); v != "" {
		n, err := ParseByteSize(v)
		if err != nil {
			return fmt.Errorf("%sMAX_VIDEO_SIZE: %w", envPrefix, err)
		}
		c.Upload.MaxVideoSize = n
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv(envPrefix + "ENV"); v != "" {
		c.Log.Environment = v
	}
	return nil
}

func (c *Config) applyFlags(cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}
	flags := cmd.Flags()

	if v := flagString(cmd, FlagServerURL); v != "" {
		c.ServerURL = v
	}
	if v := flagString(cmd, FlagOutput); v != "" {
		c.Output = v
	}
	if v := flagString(cmd, FlagLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := flagString(cmd, FlagListen); v != "" {
		c.Listen = v
	}
	if flags.Changed(FlagPageSize) {
		n, err := flags.GetInt(FlagPageSize)
		if err != nil {
			return err
		}
		c.PageSize = n
	}
	if flags.Changed(FlagInterval) {
		d, err := flags.GetDuration(FlagInterval)
		if err != nil {
			return err
		}
		c.RefreshInterval = d
	}
	if flags.Changed(FlagTimeout) {
		d, err := flags.GetDuration(FlagTimeout)
		if err != nil {
			return err
		}
		c.RequestTimeout = d
	}
	if flags.Changed(FlagNoAutoRefresh) {
		off, err := flags.GetBool(FlagNoAutoRefresh)
		if err != nil {
			return err
		}
		c.AutoRefresh = !off
	}
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required (VACONSOLE_SERVER_URL)")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server_url: %q (must be an http(s) URL)", c.ServerURL)
	}
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("invalid page_size: %d (must be between 1-100)", c.PageSize)
	}
	if c.RefreshInterval < 100*time.Millisecond {
		return fmt.Errorf("invalid refresh_interval: %s (must be at least 100ms)", c.RefreshInterval)
	}
	if c.NoticeDuration <= 0 {
		return fmt.Errorf("invalid notice_duration: %s", c.NoticeDuration)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("invalid request_timeout: %s", c.RequestTimeout)
	}
	if c.Upload.MaxVideoSize <= 0 {
		return fmt.Errorf("invalid upload.max_video_size: %d", c.Upload.MaxVideoSize)
	}
	if c.Output != "text" && c.Output != "json" {
		return fmt.Errorf("invalid output: %s (must be 'text' or 'json')", c.Output)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	return nil
}

// IsProduction 是否为生产环境
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Log.Environment) == "prod"
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}

func flagString(cmd *cobra.Command, name string) string {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return ""
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}
