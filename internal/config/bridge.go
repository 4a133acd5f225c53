// Package config resolves bridge and editor configuration with precedence
// defaults < file < env < flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	commoncfg "github.com/isuzu-shiranui/UnityMCP/core/config"
	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

// BridgeConfig holds configuration for the unity-mcp bridge.
type BridgeConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	BindAll        bool          `yaml:"bind_all"`
	DiscoveryPort  int           `yaml:"discovery_port"`
	RequestTimeout time.Duration `yaml:"-"`
	StatusAddr     string        `yaml:"status_addr"`
	StatusToken    string        `yaml:"status_token"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	LogLevel       string        `yaml:"log_level"`
	ConfigFile     string        `yaml:"-"`
}

// SetDefaults initializes c with built-in defaults.
func (c *BridgeConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = wire.DefaultPort
	}
	if c.DiscoveryPort == 0 {
		c.DiscoveryPort = c.Port + 1
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ConfigFile == "" {
		c.ConfigFile = commoncfg.DefaultConfigPath("bridge.yaml")
	}
}

// LoadFile overlays values from the YAML file at path. The request timeout
// is written in Go duration syntax, e.g. "10s".
func (c *BridgeConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return err
	}
	var aux struct {
		RequestTimeout string `yaml:"request_timeout"`
	}
	if err := yaml.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.RequestTimeout != "" {
		d, err := time.ParseDuration(aux.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout: %w", err)
		}
		c.RequestTimeout = d
	}
	return nil
}

// ApplyEnv overlays environment variables onto the current values.
func (c *BridgeConfig) ApplyEnv() {
	if v := commoncfg.GetEnv("UNITY_MCP_HOST", ""); v != "" {
		c.Host = v
	}
	if v := commoncfg.GetEnv("UNITY_MCP_PORT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
			c.DiscoveryPort = n + 1
		}
	}
	c.BindAll = commoncfg.GetEnvBool("UNITY_MCP_BIND_ALL", c.BindAll)
	if v := commoncfg.GetEnv("UNITY_MCP_DISCOVERY_PORT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DiscoveryPort = n
		}
	}
	if v := commoncfg.GetEnv("UNITY_MCP_REQUEST_TIMEOUT", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RequestTimeout = time.Duration(f * float64(time.Second))
		}
	}
	if v := commoncfg.GetEnv("STATUS_ADDR", ""); v != "" {
		c.StatusAddr = v
	}
	if v := commoncfg.GetEnv("STATUS_TOKEN", ""); v != "" {
		c.StatusToken = v
	}
	if v := commoncfg.GetEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitComma(v)
	}
	if v := commoncfg.GetEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := commoncfg.GetEnv("CONFIG_FILE", ""); v != "" {
		c.ConfigFile = v
	}
}

// BindFlagsFromCurrent binds command line flags using the current values as
// defaults. flag.Parse remains the caller's job.
func (c *BridgeConfig) BindFlagsFromCurrent() {
	flag.StringVar(&c.ConfigFile, "config", c.ConfigFile, "bridge config file path")
	flag.StringVar(&c.Host, "host", c.Host, "TCP host editor clients connect to")
	flag.IntVar(&c.Port, "port", c.Port, "TCP port editor clients connect to")
	flag.BoolVar(&c.BindAll, "bind-all", c.BindAll, "bind 0.0.0.0 instead of the configured host")
	flag.IntVar(&c.DiscoveryPort, "discovery-port", c.DiscoveryPort, "UDP port for discovery broadcasts")
	flag.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "status/metrics HTTP listen address; empty disables it")
	flag.StringVar(&c.StatusToken, "status-token", c.StatusToken, "bearer token required by the status server; leave empty to disable auth")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	flag.Func("request-timeout", "seconds to wait for an editor response", func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid request-timeout: %w", err)
		}
		c.RequestTimeout = time.Duration(f * float64(time.Second))
		return nil
	})
	flag.Func("allowed-origins", "comma separated CORS origins for the status server", func(v string) error {
		c.AllowedOrigins = splitComma(v)
		return nil
	})
}

func splitComma(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
