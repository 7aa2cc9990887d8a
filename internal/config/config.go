// Package config loads the server configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/heatgrid/internal/engine"
)

// Defaults applied by the Get* accessors when a field is omitted.
const (
	DefaultWidth               = 20
	DefaultHeight              = 20
	DefaultListen              = ":8080"
	DefaultConstantTemperature = 30.0
)

// DefaultSpaces is the space list used when none is configured.
var DefaultSpaces = []string{"constant", "mean"}

// maxFileSize bounds the size of a config file.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// ServerConfig is the JSON schema for the heatgrid server. Pointer fields
// distinguish "omitted" from the zero value so partial files are safe.
type ServerConfig struct {
	Width               *int     `json:"width,omitempty"`
	Height              *int     `json:"height,omitempty"`
	Listen              *string  `json:"listen,omitempty"`
	Spaces              []string `json:"spaces,omitempty"`
	ConstantTemperature *float64 `json:"constant_temperature,omitempty"`
	SequentialSolve     *bool    `json:"sequential_solve,omitempty"`
}

func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// LoadConfig reads a ServerConfig from a .json file no larger than 1MB and
// validates it.
func LoadConfig(path string) (*ServerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ServerConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *ServerConfig) Validate() error {
	if c.Width != nil && *c.Width <= 0 {
		return fmt.Errorf("width must be positive, got %d", *c.Width)
	}
	if c.Height != nil && *c.Height <= 0 {
		return fmt.Errorf("height must be positive, got %d", *c.Height)
	}
	if c.Listen != nil && strings.TrimSpace(*c.Listen) == "" {
		return fmt.Errorf("listen must not be empty")
	}
	if _, err := engine.SpacesByName(c.GetSpaces(), c.SpaceOptions()); err != nil {
		return err
	}
	return nil
}

// SetDimensions overrides width and height, e.g. from command-line arguments.
func (c *ServerConfig) SetDimensions(width, height int) {
	c.Width = ptrInt(width)
	c.Height = ptrInt(height)
}

// SetListen overrides the listen address.
func (c *ServerConfig) SetListen(addr string) {
	c.Listen = ptrString(addr)
}

// GetWidth returns the grid width or the default.
func (c *ServerConfig) GetWidth() int {
	if c.Width == nil {
		return DefaultWidth
	}
	return *c.Width
}

// GetHeight returns the grid height or the default.
func (c *ServerConfig) GetHeight() int {
	if c.Height == nil {
		return DefaultHeight
	}
	return *c.Height
}

// GetListen returns the HTTP listen address or the default.
func (c *ServerConfig) GetListen() string {
	if c.Listen == nil {
		return DefaultListen
	}
	return *c.Listen
}

// GetSpaces returns the configured space names in order, or the defaults.
func (c *ServerConfig) GetSpaces() []string {
	if len(c.Spaces) == 0 {
		return append([]string(nil), DefaultSpaces...)
	}
	return append([]string(nil), c.Spaces...)
}

// GetConstantTemperature returns the fill value of the constant space.
func (c *ServerConfig) GetConstantTemperature() float64 {
	if c.ConstantTemperature == nil {
		return DefaultConstantTemperature
	}
	return *c.ConstantTemperature
}

// GetSequentialSolve reports whether spaces are solved one at a time.
func (c *ServerConfig) GetSequentialSolve() bool {
	if c.SequentialSolve == nil {
		return false
	}
	return *c.SequentialSolve
}

// SpaceOptions returns the options passed to the builtin space constructors.
func (c *ServerConfig) SpaceOptions() engine.SpaceOptions {
	return engine.SpaceOptions{ConstantTemperature: float32(c.GetConstantTemperature())}
}

// SpaceFactories resolves the configured space names.
func (c *ServerConfig) SpaceFactories() ([]engine.SpaceFactory, error) {
	return engine.SpacesByName(c.GetSpaces(), c.SpaceOptions())
}
