package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultCascadeURL points at the pigo frontal face cascade.
const DefaultCascadeURL = "https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder"

// Config represents the application configuration
type Config struct {
	OutputDir string         `yaml:"output_dir"`
	Upscale   UpscaleConfig  `yaml:"upscale"`
	HEIC      HEICConfig     `yaml:"heic"`
	Face      FaceConfig     `yaml:"face"`
	Server    ServerConfig   `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
}

// UpscaleConfig configures the super-resolution runner.
type UpscaleConfig struct {
	Engine   string   `yaml:"engine"` // "resample" or "worker"
	Model    string   `yaml:"model"`
	Scale    int      `yaml:"scale"`
	TileSize int      `yaml:"tile_size"`
	Padding  int      `yaml:"padding"`
	Command  string   `yaml:"command"`
	Args     []string `yaml:"args"`
}

// HEICConfig configures the external HEIC/HEIF transcoder.
type HEICConfig struct {
	Command string `yaml:"command"`
	Quality int    `yaml:"quality"`
}

// FaceConfig configures the face detector and the overlay.
type FaceConfig struct {
	CascadeURL      string  `yaml:"cascade_url"`
	InputResolution int     `yaml:"input_resolution"`
	MinSize         int     `yaml:"min_size"`
	MaxSize         int     `yaml:"max_size"`
	ShiftFactor     float64 `yaml:"shift_factor"`
	ScaleFactor     float64 `yaml:"scale_factor"`
	MinQuality      float64 `yaml:"min_quality"`
	Style           string  `yaml:"style"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		OutputDir: "output",
		Upscale: UpscaleConfig{
			Engine:   "resample",
			Model:    "esrgan-slim-2x",
			Scale:    2,
			TileSize: 128,
			Padding:  2,
			Command:  "python3",
			Args:     []string{"-u", "python/upscale.py"},
		},
		HEIC: HEICConfig{
			Command: "heif-convert",
			Quality: 92,
		},
		Face: FaceConfig{
			CascadeURL:      DefaultCascadeURL,
			InputResolution: 512,
			MinSize:         20,
			MaxSize:         1000,
			ShiftFactor:     0.1,
			ScaleFactor:     1.1,
			MinQuality:      5.0,
			Style:           "dog",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads and parses the configuration file on top of the defaults.
// An empty path returns the defaults untouched.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables. The database URL is assembled from the
// POSTGRES_* variables when it hasn't been set explicitly.
func (c *Config) ApplyEnv() {
	if dir := os.Getenv("IMAGEDROP_OUTPUT"); dir != "" {
		c.OutputDir = dir
	}
	if c.Database.URL == "" {
		if host := os.Getenv("POSTGRES_HOST"); host != "" {
			user := os.Getenv("POSTGRES_USER")
			pass := os.Getenv("POSTGRES_PASSWORD")
			name := os.Getenv("POSTGRES_DB")
			port := os.Getenv("POSTGRES_PORT")
			if port == "" {
				port = "5432"
			}
			c.Database.URL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
		}
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	switch c.Upscale.Engine {
	case "resample", "worker":
	default:
		errs = append(errs, fmt.Errorf("upscale.engine must be 'resample' or 'worker', got %q", c.Upscale.Engine))
	}
	if c.Upscale.Scale < 2 || c.Upscale.Scale > 8 {
		errs = append(errs, fmt.Errorf("upscale.scale must be between 2 and 8, got %d", c.Upscale.Scale))
	}
	if c.Upscale.TileSize < 16 {
		errs = append(errs, fmt.Errorf("upscale.tile_size must be >= 16, got %d", c.Upscale.TileSize))
	}
	if c.Upscale.Padding < 0 {
		errs = append(errs, fmt.Errorf("upscale.padding must be >= 0, got %d", c.Upscale.Padding))
	}
	if c.Upscale.Engine == "worker" && c.Upscale.Command == "" {
		errs = append(errs, errors.New("upscale.command is required for the worker engine"))
	}
	if c.HEIC.Command == "" {
		errs = append(errs, errors.New("heic.command must not be empty"))
	}
	if c.HEIC.Quality < 1 || c.HEIC.Quality > 100 {
		errs = append(errs, fmt.Errorf("heic.quality must be between 1 and 100, got %d", c.HEIC.Quality))
	}
	if c.Face.CascadeURL == "" {
		errs = append(errs, errors.New("face.cascade_url must not be empty"))
	}
	if c.Face.InputResolution < 64 {
		errs = append(errs, fmt.Errorf("face.input_resolution must be >= 64, got %d", c.Face.InputResolution))
	}
	if c.Face.MinQuality <= 0 {
		errs = append(errs, fmt.Errorf("face.min_quality must be > 0, got %f", c.Face.MinQuality))
	}
	switch c.Face.Style {
	case "dog", "pixel", "black":
	default:
		errs = append(errs, fmt.Errorf("face.style must be one of dog, pixel, black, got %q", c.Face.Style))
	}
	return errors.Join(errs...)
}
