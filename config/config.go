// Package config loads ttwatch settings from a YAML file and
// TTWATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/hanwen/go-ttwatch/log"
	"github.com/hanwen/go-ttwatch/transport"
	"github.com/hanwen/go-ttwatch/ttwatch"
)

type Config struct {
	// Timeout bounds the wait for each response.
	Timeout time.Duration `mapstructure:"timeout"`
	// Retries of idempotent queries after a timeout.
	Retries       int  `mapstructure:"retries"`
	StrictCounter bool `mapstructure:"strict_counter"`
	ReadChunk     int  `mapstructure:"read_chunk"`
	WriteChunk    int  `mapstructure:"write_chunk"`

	// Device is a pattern selecting one watch by ID or serial.
	Device string `mapstructure:"device"`

	Log LogConfig `mapstructure:"log"`
	BLE BLEConfig `mapstructure:"ble"`
	USB USBConfig `mapstructure:"usb"`
}

type LogConfig struct {
	// Level: trace, debug, info, warn, error
	Level string      `mapstructure:"level"`
	Debug DebugConfig `mapstructure:"debug"`
	File  FileConfig  `mapstructure:"file"`
}

type DebugConfig struct {
	USB   bool `mapstructure:"usb"`
	BLE   bool `mapstructure:"ble"`
	Proto bool `mapstructure:"proto"`
	Data  bool `mapstructure:"data"`
}

type FileConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type BLEConfig struct {
	ServiceUUID string        `mapstructure:"service_uuid"`
	WriteUUID   string        `mapstructure:"write_uuid"`
	NotifyUUID  string        `mapstructure:"notify_uuid"`
	MTU         int           `mapstructure:"mtu"`
	ScanTimeout time.Duration `mapstructure:"scan_timeout"`
	NamePrefix  string        `mapstructure:"name_prefix"`
}

type USBConfig struct {
	// ReportSize of HID output reports; 0 uses the endpoint size.
	ReportSize int `mapstructure:"report_size"`
}

// Dir is the directory holding config.yaml and the default log file.
func Dir() string {
	home, err := homedir.Dir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ttwatch")
}

func Default() *Config {
	return &Config{
		Timeout:    ttwatch.DefaultTimeout,
		Retries:    1,
		ReadChunk:  ttwatch.DefaultReadChunk,
		WriteChunk: ttwatch.DefaultWriteChunk,
		Log: LogConfig{
			Level: "info",
			File: FileConfig{
				Filename:   filepath.Join(Dir(), "ttwatch.log"),
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		BLE: BLEConfig{
			ServiceUUID: transport.DefaultBLEOptions.ServiceUUID,
			WriteUUID:   transport.DefaultBLEOptions.WriteUUID,
			NotifyUUID:  transport.DefaultBLEOptions.NotifyUUID,
			MTU:         transport.DefaultBLEOptions.MTU,
			ScanTimeout: transport.DefaultBLEOptions.ScanTimeout,
		},
	}
}

// Load reads configuration from path if non-empty, otherwise from
// config.yaml in Dir() when present. Environment variables use the
// prefix TTWATCH with "." replaced by "_", eg. TTWATCH_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("retries", cfg.Retries)
	v.SetDefault("strict_counter", cfg.StrictCounter)
	v.SetDefault("read_chunk", cfg.ReadChunk)
	v.SetDefault("write_chunk", cfg.WriteChunk)
	v.SetDefault("device", cfg.Device)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.debug.usb", false)
	v.SetDefault("log.debug.ble", false)
	v.SetDefault("log.debug.proto", false)
	v.SetDefault("log.debug.data", false)
	v.SetDefault("log.file.enable", cfg.Log.File.Enable)
	v.SetDefault("log.file.filename", cfg.Log.File.Filename)
	v.SetDefault("log.file.max_size_mb", cfg.Log.File.MaxSizeMB)
	v.SetDefault("log.file.max_backups", cfg.Log.File.MaxBackups)
	v.SetDefault("log.file.max_age_days", cfg.Log.File.MaxAgeDays)
	v.SetDefault("log.file.compress", cfg.Log.File.Compress)
	v.SetDefault("ble.service_uuid", cfg.BLE.ServiceUUID)
	v.SetDefault("ble.write_uuid", cfg.BLE.WriteUUID)
	v.SetDefault("ble.notify_uuid", cfg.BLE.NotifyUUID)
	v.SetDefault("ble.mtu", cfg.BLE.MTU)
	v.SetDefault("ble.scan_timeout", cfg.BLE.ScanTimeout)
	v.SetDefault("ble.name_prefix", cfg.BLE.NamePrefix)
	v.SetDefault("usb.report_size", cfg.USB.ReportSize)

	if path == "" {
		p := filepath.Join(Dir(), "config.yaml")
		if _, err := os.Stat(p); err == nil {
			path = p
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	if c.ReadChunk <= 0 || c.ReadChunk > ttwatch.MaxReadChunk {
		return fmt.Errorf("read_chunk must be in 1..%d, got %d", ttwatch.MaxReadChunk, c.ReadChunk)
	}
	if c.WriteChunk <= 0 || c.WriteChunk > ttwatch.MaxWriteChunk {
		return fmt.Errorf("write_chunk must be in 1..%d, got %d", ttwatch.MaxWriteChunk, c.WriteChunk)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Logging configures log.Root and returns the subsystem loggers. The
// closer releases the log file, if any.
func (c *Config) Logging() (*log.Children, func() error, error) {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	closer := func() error { return nil }
	if c.Log.File.Enable {
		if err := os.MkdirAll(filepath.Dir(c.Log.File.Filename), 0o755); err != nil {
			return nil, nil, err
		}
		lf := log.AddFile(log.Root, log.FileConfig{
			Filename:   c.Log.File.Filename,
			MaxSizeMB:  c.Log.File.MaxSizeMB,
			MaxBackups: c.Log.File.MaxBackups,
			MaxAgeDays: c.Log.File.MaxAgeDays,
			Compress:   c.Log.File.Compress,
		})
		closer = lf.Close
	}
	flags := log.DebugFlags{
		USB:   c.Log.Debug.USB,
		BLE:   c.Log.Debug.BLE,
		Proto: c.Log.Debug.Proto,
		Data:  c.Log.Debug.Data,
	}
	return log.PrepareChildren(log.Root, level, flags), closer, nil
}

func (c *Config) BLEOptions() transport.BLEOptions {
	return transport.BLEOptions{
		ServiceUUID: c.BLE.ServiceUUID,
		WriteUUID:   c.BLE.WriteUUID,
		NotifyUUID:  c.BLE.NotifyUUID,
		MTU:         c.BLE.MTU,
		ScanTimeout: c.BLE.ScanTimeout,
	}
}

// Options converts the settings into connection options.
func (c *Config) Options(logs *log.Children) []ttwatch.Option {
	return []ttwatch.Option{
		ttwatch.WithTimeout(c.Timeout),
		ttwatch.WithRetries(c.Retries),
		ttwatch.WithStrictCounter(c.StrictCounter),
		ttwatch.WithChunkSizes(c.ReadChunk, c.WriteChunk),
		ttwatch.WithUSBReportSize(c.USB.ReportSize),
		ttwatch.WithBLE(c.BLEOptions()),
		ttwatch.WithLogger(logs),
	}
}
