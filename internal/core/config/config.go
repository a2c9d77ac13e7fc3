// Package config handles configuration loading and validation for mqtty.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Server names one MQTT backend the client can run against.
type Server struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
}

// ListOptions holds the default ordering for a list screen.
type ListOptions struct {
	SortBy  string `yaml:"sort-by"`
	Reverse bool   `yaml:"reverse"`
}

// Config holds the application configuration.
type Config struct {
	Servers          []Server          `yaml:"servers"`
	Palette          string            `yaml:"palette"`
	Keybindings      map[string]string `yaml:"keybindings"`
	HandleMouse      bool              `yaml:"handle-mouse"`
	Breadcrumbs      bool              `yaml:"breadcrumbs"`
	SubscribedTopics []string          `yaml:"subscribed-topics"`
	TopicList        ListOptions       `yaml:"topic-list"`
	MessageList      ListOptions       `yaml:"message-list"`
	DataDir          string            `yaml:"data-dir"`
	LogFile          string            `yaml:"log-file"`

	// selected is the server chosen for this run.
	selected Server
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mqtty.yaml"
	}
	return filepath.Join(home, ".mqtty.yaml")
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mqtty")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mqtty"
	}
	return filepath.Join(home, ".local", "share", "mqtty")
}

// Load reads the configuration file and selects a server by name. An
// empty name selects the first configured server. A missing config
// file is an error; the CLI turns it into exit code 1.
func Load(path, serverName string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg := Config{
		Breadcrumbs: true,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.selectServer(serverName); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.Palette == "" {
		c.Palette = "default"
	}
	if c.TopicList.SortBy == "" {
		c.TopicList.SortBy = "name"
	}
	if c.MessageList.SortBy == "" {
		c.MessageList.SortBy = "key"
	}
	if c.Keybindings == nil {
		c.Keybindings = map[string]string{}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("at least one server must be configured")
	}
	seen := map[string]bool{}
	for _, s := range c.Servers {
		if s.Name == "" || s.Host == "" {
			return fmt.Errorf("server entries need both name and host")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate server name %q", s.Name)
		}
		seen[s.Name] = true
	}

	for _, sortBy := range []string{c.TopicList.SortBy, c.MessageList.SortBy} {
		switch sortBy {
		case "key", "updated", "name":
		default:
			return fmt.Errorf("sort-by must be one of key, updated, name; got %q", sortBy)
		}
	}
	return nil
}

func (c *Config) selectServer(name string) error {
	if name == "" {
		c.selected = c.Servers[0]
		return nil
	}
	for _, s := range c.Servers {
		if s.Name == name {
			c.selected = s
			return nil
		}
	}
	return fmt.Errorf("server %q not found in config", name)
}

// Server returns the backend selected for this run.
func (c *Config) Server() Server {
	return c.selected
}

// Per-server derived paths. Each configured backend gets its own
// database, socket, and lock file under the data directory.

func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, c.fileStem()+".db")
}

func (c *Config) SocketPath() string {
	return filepath.Join(c.DataDir, c.fileStem()+".sock")
}

func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, c.fileStem()+".lock")
}

// LogPath returns the configured log file, defaulting next to the data.
func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.DataDir, c.fileStem()+".log")
}

func (c *Config) fileStem() string {
	return "mqtty-" + strings.ReplaceAll(c.selected.Name, "/", "_")
}
