// Package setup registers the epirisk MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// DefaultServerName is the key the server is registered under
const DefaultServerName = "epi-risk"

// ClientConfig is the mcpServers document read by desktop MCP clients.
// Unknown top-level keys are preserved.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// ServerEntry launches one MCP server over stdio
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls RegisterServer
type Options struct {
	ClientConfigPath string // empty: DefaultClientConfigPath
	ServerName       string // empty: DefaultServerName
	BinaryPath       string // empty: the running executable
	ConfigFile       string // passed as --config when set
	Env              map[string]string
}

// Status describes a registration
type Status struct {
	ClientConfigPath string   `json:"client_config_path"`
	Registered       bool     `json:"registered"`
	Command          string   `json:"command,omitempty"`
	Args             []string `json:"args,omitempty"`
	Issues           []string `json:"issues"`
}

// DefaultClientConfigPath returns the desktop client config location for this OS.
func DefaultClientConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads path. A missing file yields an empty config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: map[string]ServerEntry{}, extra: map[string]json.RawMessage{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read client config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]ServerEntry{}
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory
func (c *ClientConfig) Save(path string) error {
	doc := make(map[string]interface{}, len(c.extra)+1)
	for k, v := range c.extra {
		doc[k] = v
	}
	doc["mcpServers"] = c.MCPServers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal client config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write client config: %w", err)
	}
	return nil
}

// RegisterServer adds or replaces the epirisk entry and returns the path written.
func RegisterServer(opts Options) (string, error) {
	path, err := clientPath(opts.ClientConfigPath)
	if err != nil {
		return "", err
	}
	cfg, err := LoadClientConfig(path)
	if err != nil {
		return "", err
	}

	binary := opts.BinaryPath
	if binary == "" {
		if binary, err = os.Executable(); err != nil {
			return "", fmt.Errorf("could not determine epirisk binary: %w", err)
		}
	}
	if abs, err := filepath.Abs(binary); err == nil {
		binary = abs
	}

	entry := ServerEntry{Command: binary, Args: []string{"mcp"}}
	if opts.ConfigFile != "" {
		configFile, err := filepath.Abs(opts.ConfigFile)
		if err != nil {
			return "", err
		}
		entry.Args = append(entry.Args, "--config", configFile)
	}
	if len(opts.Env) > 0 {
		entry.Env = make(map[string]string, len(opts.Env))
		for k, v := range opts.Env {
			entry.Env[k] = v
		}
	}

	cfg.MCPServers[serverName(opts.ServerName)] = entry
	if err := cfg.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

// GetStatus inspects the client config for a registration
func GetStatus(clientConfigPath, name string) (*Status, error) {
	path, err := clientPath(clientConfigPath)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}

	status := &Status{ClientConfigPath: path, Issues: []string{}}
	entry, ok := cfg.MCPServers[serverName(name)]
	if !ok {
		status.Issues = append(status.Issues, fmt.Sprintf("%s is not registered", serverName(name)))
		return status, nil
	}
	status.Registered = true
	status.Command = entry.Command
	status.Args = entry.Args

	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case runtime.GOOS != "windows" && info.Mode()&0111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}
	for i, arg := range entry.Args {
		if arg == "--config" && i+1 < len(entry.Args) {
			if _, err := os.Stat(entry.Args[i+1]); err != nil {
				status.Issues = append(status.Issues, fmt.Sprintf("config file not found: %s", entry.Args[i+1]))
			}
		}
	}
	sort.Strings(status.Issues)
	return status, nil
}

func clientPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultClientConfigPath()
}

func serverName(name string) string {
	if name == "" {
		return DefaultServerName
	}
	return name
}
