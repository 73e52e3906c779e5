package video_batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoEndpoint    = errors.New("no resolver endpoint configured")
	ErrInvalidConfig = errors.New("invalid config")
)

// Config holds everything the resolver, fetcher and batch need. It is passed by value into each constructor, so tests
// can point components at fake endpoints and temporary directories.
type Config struct {
	// Base URL of the resolution service; the percent-encoded share link is appended to it.
	ResolverEndpoint  string `yaml:"resolver_endpoint"`
	ResolverUserAgent string `yaml:"resolver_user_agent"`
	// Total timeout for one resolution request; zero means no timeout.
	ResolverTimeout time.Duration `yaml:"resolver_timeout"`

	FetchUserAgent string `yaml:"fetch_user_agent"`
	// Timeout for receiving response headers, and for each individual read of the response body; zero means no timeout.
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	FetchAttempts int           `yaml:"fetch_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`

	TargetDir          string `yaml:"target_dir"`
	TargetFileTemplate string `yaml:"target_file_template"`
	Ext                string `yaml:"ext"`
	// A file is only considered complete if it is strictly larger than this many bytes.
	MinValidSize int64 `yaml:"min_valid_size"`

	// Only process the first Limit links, if positive.
	Limit int `yaml:"limit"`
	// Number of links processed at once; 1 gives strictly sequential processing.
	Workers int `yaml:"workers"`
}

var DefaultConfig = Config{
	ResolverUserAgent: "parsevideo api/v1",
	ResolverTimeout:   30 * time.Second,

	FetchUserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
	FetchTimeout:   60 * time.Second,
	FetchAttempts:  3,
	RetryDelay:     2 * time.Second,

	TargetDir:          "videos",
	TargetFileTemplate: "{{.ID}}.{{.Ext}}",
	Ext:                "mp4",
	MinValidSize:       50_000,

	Workers: 1,
}

// Validate checks that the Config is usable, returning an error describing the first problem found.
func (c *Config) Validate() error {
	if c.ResolverEndpoint == "" {
		return ErrNoEndpoint
	}
	if c.ResolverTimeout < 0 || c.FetchTimeout < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("%w: timeouts and delays must not be negative", ErrInvalidConfig)
	}
	if c.FetchAttempts < 1 {
		return fmt.Errorf("%w: fetch attempts must be at least 1, got %d", ErrInvalidConfig, c.FetchAttempts)
	}
	if c.MinValidSize < 0 {
		return fmt.Errorf("%w: min valid size must not be negative, got %d", ErrInvalidConfig, c.MinValidSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.Ext == "" {
		return fmt.Errorf("%w: empty file extension", ErrInvalidConfig)
	}
	if _, err := c.targetFileTemplate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// TargetPath gives the destination file for a video ID, joining TargetDir with the rendered TargetFileTemplate.
func (c *Config) TargetPath(id string) (string, error) {
	tmpl, err := c.targetFileTemplate()
	if err != nil {
		return "", err
	}
	args := targetFileTemplateArgs{
		ID:  id,
		Ext: strings.TrimPrefix(c.Ext, "."),
	}
	builder := strings.Builder{}
	if err := tmpl.Execute(&builder, &args); err != nil {
		return "", err
	}
	return filepath.Join(c.TargetDir, builder.String()), nil
}

func (c *Config) targetFileTemplate() (*template.Template, error) {
	return template.New("target_file").Option("missingkey=error").Parse(c.TargetFileTemplate)
}

type targetFileTemplateArgs struct {
	ID  string
	Ext string
}

// LoadConfigFile overlays the YAML file at path onto c. Fields missing from the file keep their current values.
func LoadConfigFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}
