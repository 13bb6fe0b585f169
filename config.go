package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/xgzlucario/ember/internal/resp"
)

const (
	defaultConfigFileName = "ember.toml"

	FsyncAlways   = "always"
	FsyncEverySec = "everysec"
	FsyncNo       = "no"
)

type Config struct {
	Bind       string `mapstructure:"bind"`
	Port       int    `mapstructure:"port"`
	MaxClients int    `mapstructure:"maxclients"`
	Databases  int    `mapstructure:"databases"`

	// Hz is the number of cron ticks per second.
	Hz                  int `mapstructure:"hz"`
	ActiveExpireSamples int `mapstructure:"active-expire-samples"`

	ProtoMaxBulkLen      int `mapstructure:"proto-max-bulk-len"`
	ProtoMaxMultiBulkLen int `mapstructure:"proto-max-multibulk-len"`
	ProtoInlineMaxSize   int `mapstructure:"proto-inline-max-size"`

	AppendOnly     bool   `mapstructure:"appendonly"`
	AppendFileName string `mapstructure:"appendfilename"`
	AppendFsync    string `mapstructure:"appendfsync"`

	Dir            string `mapstructure:"dir"`
	DbFileName     string `mapstructure:"dbfilename"`
	SaveOnShutdown bool   `mapstructure:"save-on-shutdown"`

	LogLevel string `mapstructure:"loglevel"`
}

func DefaultConfig() *Config {
	return &Config{
		Bind:                 "0.0.0.0",
		Port:                 6379,
		MaxClients:           10000,
		Databases:            16,
		Hz:                   10,
		ActiveExpireSamples:  20,
		ProtoMaxBulkLen:      resp.DefaultOptions.MaxBulkLen,
		ProtoMaxMultiBulkLen: resp.DefaultOptions.MaxMultiBulkLen,
		ProtoInlineMaxSize:   resp.DefaultOptions.MaxInlineSize,
		AppendOnly:           false,
		AppendFileName:       "appendonly.aof",
		AppendFsync:          FsyncEverySec,
		Dir:                  ".",
		DbFileName:           "dump.rdb",
		SaveOnShutdown:       false,
		LogLevel:             "info",
	}
}

// LoadConfig reads path on top of DefaultConfig. The format follows the file
// extension. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	def := DefaultConfig()
	v.SetDefault("bind", def.Bind)
	v.SetDefault("port", def.Port)
	v.SetDefault("maxclients", def.MaxClients)
	v.SetDefault("databases", def.Databases)
	v.SetDefault("hz", def.Hz)
	v.SetDefault("active-expire-samples", def.ActiveExpireSamples)
	v.SetDefault("proto-max-bulk-len", def.ProtoMaxBulkLen)
	v.SetDefault("proto-max-multibulk-len", def.ProtoMaxMultiBulkLen)
	v.SetDefault("proto-inline-max-size", def.ProtoInlineMaxSize)
	v.SetDefault("appendonly", def.AppendOnly)
	v.SetDefault("appendfilename", def.AppendFileName)
	v.SetDefault("appendfsync", def.AppendFsync)
	v.SetDefault("dir", def.Dir)
	v.SetDefault("dbfilename", def.DbFileName)
	v.SetDefault("save-on-shutdown", def.SaveOnShutdown)
	v.SetDefault("loglevel", def.LogLevel)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	config := new(Config)
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.MaxClients < 1:
		return fmt.Errorf("invalid maxclients %d", c.MaxClients)
	case c.Databases < 1:
		return fmt.Errorf("invalid databases %d", c.Databases)
	case c.Hz < 1 || c.Hz > 500:
		return fmt.Errorf("invalid hz %d, must be in 1..500", c.Hz)
	case c.ActiveExpireSamples < 1:
		return fmt.Errorf("invalid active-expire-samples %d", c.ActiveExpireSamples)
	case c.ProtoMaxBulkLen <= 0, c.ProtoMaxMultiBulkLen <= 0, c.ProtoInlineMaxSize <= 0:
		return errors.New("protocol limits must be positive")
	}
	switch c.AppendFsync {
	case FsyncAlways, FsyncEverySec, FsyncNo:
	default:
		return fmt.Errorf("invalid appendfsync %q", c.AppendFsync)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid loglevel %q", c.LogLevel)
	}
	return nil
}

// maxQueryBuffer bounds the unparsed input of a single client.
func (c *Config) maxQueryBuffer() int {
	return c.ProtoMaxBulkLen + c.ProtoInlineMaxSize
}

func (c *Config) respOptions() resp.Options {
	return resp.Options{
		MaxBulkLen:      c.ProtoMaxBulkLen,
		MaxMultiBulkLen: c.ProtoMaxMultiBulkLen,
		MaxInlineSize:   c.ProtoInlineMaxSize,
	}
}

func (c *Config) aofPath() string {
	return filepath.Join(c.Dir, c.AppendFileName)
}

func (c *Config) rdbPath() string {
	return filepath.Join(c.Dir, c.DbFileName)
}
