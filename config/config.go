package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	C "github.com/Dreamacro/clash-dashboard/constant"
	"github.com/Dreamacro/clash-dashboard/log"

	"gopkg.in/yaml.v2"
)

// General config
type General struct {
	Controller
	LogLevel log.LogLevel `json:"log-level"`
}

// Controller is the UI facing API
type Controller struct {
	ExternalController string `json:"-"`
	Secret             string `json:"-"`
}

// Query config of the query cache
type Query struct {
	CacheTime time.Duration
	StaleTime time.Duration
}

// Profile config
type Profile struct {
	StoreFilterText bool `yaml:"store-filter-text"`
}

// Config is clash-dashboard config manager
type Config struct {
	General  *General
	Upstream C.APIConfig
	Query    *Query
	Profile  *Profile
}

type RawQuery struct {
	CacheTime int `yaml:"cache-time"`
	StaleTime int `yaml:"stale-time"`
}

type RawConfig struct {
	ExternalController string       `yaml:"external-controller"`
	Secret             string       `yaml:"secret"`
	LogLevel           log.LogLevel `yaml:"log-level"`

	Upstream C.APIConfig `yaml:"controller"`
	Query    RawQuery    `yaml:"query"`
	Profile  Profile     `yaml:"profile"`
}

// Parse config
func Parse(buf []byte) (*Config, error) {
	rawCfg, err := UnmarshalRawConfig(buf)
	if err != nil {
		return nil, err
	}

	return ParseRawConfig(rawCfg)
}

func UnmarshalRawConfig(buf []byte) (*RawConfig, error) {
	// config with default value
	rawCfg := &RawConfig{
		ExternalController: "127.0.0.1:9091",
		LogLevel:           log.INFO,
		Upstream: C.APIConfig{
			BaseURL: "http://127.0.0.1:9090",
		},
		Query: RawQuery{
			CacheTime: 300,
		},
		Profile: Profile{
			StoreFilterText: true,
		},
	}

	if err := yaml.Unmarshal(buf, rawCfg); err != nil {
		return nil, err
	}

	return rawCfg, nil
}

func ParseRawConfig(rawCfg *RawConfig) (*Config, error) {
	upstream, err := parseUpstream(rawCfg.Upstream)
	if err != nil {
		return nil, err
	}

	if rawCfg.Query.CacheTime < 0 || rawCfg.Query.StaleTime < 0 {
		return nil, errors.New("query cache-time and stale-time must not be negative")
	}

	return &Config{
		General: &General{
			Controller: Controller{
				ExternalController: rawCfg.ExternalController,
				Secret:             rawCfg.Secret,
			},
			LogLevel: rawCfg.LogLevel,
		},
		Upstream: upstream,
		Query: &Query{
			CacheTime: time.Duration(rawCfg.Query.CacheTime) * time.Second,
			StaleTime: time.Duration(rawCfg.Query.StaleTime) * time.Second,
		},
		Profile: &rawCfg.Profile,
	}, nil
}

func parseUpstream(cfg C.APIConfig) (C.APIConfig, error) {
	if cfg.BaseURL == "" {
		return cfg, errors.New("controller url is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return cfg, fmt.Errorf("controller url %s: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return cfg, fmt.Errorf("controller url %s: unsupported scheme %q", cfg.BaseURL, u.Scheme)
	}
	return cfg, nil
}

// ParseWithPath reads and parses the config file at path
func ParseWithPath(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(buf)
}
