package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete server configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Admins []int64        `hcl:"admins,optional"`
}

// ServerSettings contains server-level configuration.
type ServerSettings struct {
	Address             string `hcl:"address,optional"`
	Port                int    `hcl:"port,optional"`
	LogLevel            string `hcl:"log_level,optional"`
	SnapshotFile        string `hcl:"snapshot_file,optional"`
	AutoCallIntervalSec int    `hcl:"auto_call_interval_seconds,optional"`
}

// Addr returns the listen address in host:port form.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:             "localhost",
			Port:                8080,
			LogLevel:            "info",
			SnapshotFile:        "bingo-state.json",
			AutoCallIntervalSec: 15,
		},
	}
}

// LoadConfig loads configuration from an HCL file, applying defaults for
// anything unset. A missing file yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Server.SnapshotFile == "" {
		config.Server.SnapshotFile = "bingo-state.json"
	}
	if config.Server.AutoCallIntervalSec == 0 {
		config.Server.AutoCallIntervalSec = 15
	}

	return &config, nil
}
