package config

import (
	"flag"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	commoncfg "github.com/isuzu-shiranui/UnityMCP/core/config"
	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

// EditorConfig holds configuration for the editor-side dispatcher binary.
// In connect mode it dials the bridge hub; in listen mode it runs the
// control server and waits for the bridge to connect.
type EditorConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Listen      bool   `yaml:"listen"`
	ClientID    string `yaml:"client_id"`
	ProjectName string `yaml:"project_name"`
	LogLevel    string `yaml:"log_level"`
	ConfigFile  string `yaml:"-"`
}

// SetDefaults initializes c with built-in defaults. The editor defaults
// match the bridge defaults.
func (c *EditorConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = wire.DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ConfigFile == "" {
		c.ConfigFile = commoncfg.DefaultConfigPath("editor.yaml")
	}
}

// LoadFile overlays values from the YAML file at path.
func (c *EditorConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

// ApplyEnv overlays environment variables onto the current values.
func (c *EditorConfig) ApplyEnv() {
	if v := commoncfg.GetEnv("UNITY_MCP_HOST", ""); v != "" {
		c.Host = v
	}
	if v := commoncfg.GetEnv("UNITY_MCP_PORT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	c.Listen = commoncfg.GetEnvBool("UNITY_MCP_EDITOR_LISTEN", c.Listen)
	if v := commoncfg.GetEnv("UNITY_MCP_CLIENT_ID", ""); v != "" {
		c.ClientID = v
	}
	if v := commoncfg.GetEnv("UNITY_MCP_PROJECT_NAME", ""); v != "" {
		c.ProjectName = v
	}
	if v := commoncfg.GetEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := commoncfg.GetEnv("CONFIG_FILE", ""); v != "" {
		c.ConfigFile = v
	}
}

// BindFlagsFromCurrent binds command line flags using the current values as
// defaults.
func (c *EditorConfig) BindFlagsFromCurrent() {
	flag.StringVar(&c.ConfigFile, "config", c.ConfigFile, "editor config file path")
	flag.StringVar(&c.Host, "host", c.Host, "bridge host")
	flag.IntVar(&c.Port, "port", c.Port, "bridge port")
	flag.BoolVar(&c.Listen, "listen", c.Listen, "run the control server instead of dialing the bridge")
	flag.StringVar(&c.ClientID, "client-id", c.ClientID, "persistent client id sent at registration")
	flag.StringVar(&c.ProjectName, "project-name", c.ProjectName, "project name reported in client info")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
}
