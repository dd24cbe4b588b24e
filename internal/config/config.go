// Package config holds the run configuration shared by the CLI and the
// harness.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML-file side of the configuration. CLI flags
// override anything set here.
type Config struct {
	// AutostepBurst is the number of instructions per autostep burst.
	AutostepBurst int `yaml:"autostep_burst"`

	// UART0Socket / UART1Socket map the UARTs onto local byte-stream
	// sockets instead of stdio.
	UART0Socket string `yaml:"uart0_socket"`
	UART1Socket string `yaml:"uart1_socket"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{AutostepBurst: 300}
}

// Load reads a YAML configuration file on top of the defaults. Unknown
// keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.AutostepBurst <= 0 {
		return cfg, fmt.Errorf("config %s: autostep_burst must be positive", path)
	}
	return cfg, nil
}
