package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/scipunch/feedwiki/index"
	"github.com/scipunch/feedwiki/store"
)

// ErrNotFound is returned when no config file could be located
var ErrNotFound = errors.New("config file not found")

// ExportFormat selects the syndication format of the exported feed
type ExportFormat = string

var (
	Atom = ExportFormat("atom")
	RSS  = ExportFormat("rss")
)

// Candidates are the file names searched in the working directory, in order
var Candidates = []string{"config.yaml", "config.yml", "config.toml"}

type Config struct {
	Feeds           []string      `yaml:"feeds" toml:"feeds"`
	OutputDirectory string        `yaml:"output_dir" toml:"output_dir"`       // Root for Home.md and Daily/
	DatabasePath    string        `yaml:"database_path" toml:"database_path"` // Relative to the working directory unless absolute
	StripHTML       bool          `yaml:"strip_html" toml:"strip_html"`       // Remove markup from summaries
	LogFile         string        `yaml:"log_file" toml:"log_file"`           // Optional JSON log file
	Filter          Filter        `yaml:"filter" toml:"filter"`
	Index           index.Options `yaml:"index" toml:"index"`
	Export          Export        `yaml:"export" toml:"export"`
}

// Filter drops entries before they are stored or archived
type Filter struct {
	MinWords        int      `yaml:"min_words" toml:"min_words"`               // Minimum word count of title + summary (0 = no limit)
	ExcludePatterns []string `yaml:"exclude_patterns" toml:"exclude_patterns"` // Regex patterns to exclude
}

// Export configures the optional feed of recently stored entries
type Export struct {
	Enabled bool         `yaml:"enabled" toml:"enabled"`
	Format  ExportFormat `yaml:"format" toml:"format"`
	Limit   int          `yaml:"limit" toml:"limit"`
}

// Read decodes the config at path. The format follows the file extension.
func Read(path string) (Config, error) {
	conf := Default()
	dat, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		_, err = toml.Decode(string(dat), &conf)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(dat, &conf)
	default:
		return conf, fmt.Errorf("unsupported config extension '%s' for %s", ext, path)
	}
	if err != nil {
		return conf, fmt.Errorf("failed to decode config at %s with %w", path, err)
	}

	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("invalid config at %s: %w", path, err)
	}
	return conf, nil
}

func Write(cfgPath string, cfg Config) error {
	var (
		blob []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(cfgPath)); ext {
	case ".toml":
		blob, err = toml.Marshal(cfg)
	case ".yaml", ".yml":
		blob, err = yaml.Marshal(cfg)
	default:
		return fmt.Errorf("unsupported config extension '%s' for %s", ext, cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to encode config with %w", err)
	}

	basePath := filepath.Dir(cfgPath)
	err = os.MkdirAll(basePath, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create base config directory at '%s' with %w", basePath, err)
	}
	err = os.WriteFile(cfgPath, blob, 0644)
	if err != nil {
		return fmt.Errorf("failed to write into config file at '%s' with %w", cfgPath, err)
	}
	slog.Info("config written", "at", cfgPath)
	return nil
}

// Find returns the first candidate config file that exists in dir
func Find(dir string) (string, error) {
	paths := lo.Map(Candidates, func(name string, _ int) string {
		return filepath.Join(dir, name)
	})
	found, ok := lo.Find(paths, func(p string) bool {
		info, err := os.Stat(p)
		return err == nil && !info.IsDir()
	})
	if !ok {
		return "", fmt.Errorf("%w in %s (tried %s)", ErrNotFound, dir, strings.Join(Candidates, ", "))
	}
	return found, nil
}

func Default() Config {
	return Config{
		Feeds:           []string{},
		OutputDirectory: "out_md",
		DatabasePath:    store.DefaultPath(),
		Index:           index.DefaultOptions(),
		Export: Export{
			Format: Atom,
			Limit:  50,
		},
	}
}

// Validate reports settings that would make a run fail halfway
func (c Config) Validate() error {
	if strings.TrimSpace(c.Index.Heading) == "" {
		return errors.New("index heading must not be empty")
	}
	if c.Export.Format != Atom && c.Export.Format != RSS {
		return fmt.Errorf("unknown export format '%s' (valid: atom, rss)", c.Export.Format)
	}
	if c.Export.Limit <= 0 {
		return fmt.Errorf("export limit must be positive, got %d", c.Export.Limit)
	}
	for i, feed := range c.Feeds {
		if strings.TrimSpace(feed) == "" {
			return fmt.Errorf("feed %d: url is empty", i)
		}
	}
	return nil
}

// applyDefaults fills fields the decoded file left blank
func (c *Config) applyDefaults() {
	def := Default()
	if c.Feeds == nil {
		c.Feeds = def.Feeds
	}
	if c.OutputDirectory == "" {
		c.OutputDirectory = def.OutputDirectory
	}
	if c.DatabasePath == "" {
		c.DatabasePath = def.DatabasePath
	}
	if c.Index.Title == "" {
		c.Index.Title = def.Index.Title
	}
	if c.Index.Description == "" {
		c.Index.Description = def.Index.Description
	}
	c.Index.Heading = strings.TrimSpace(c.Index.Heading)
	if c.Index.Heading == "" {
		c.Index.Heading = def.Index.Heading
	}
	if c.Export.Format == "" {
		c.Export.Format = def.Export.Format
	}
	if c.Export.Limit == 0 {
		c.Export.Limit = def.Export.Limit
	}
}

// IndexPath is the location of the Home document
func (c Config) IndexPath() string {
	return filepath.Join(c.OutputDirectory, index.FileName)
}

// ExportPath is the location of the exported feed
func (c Config) ExportPath() string {
	return filepath.Join(c.OutputDirectory, "feed.xml")
}

// LockPath is the advisory lock guarding one run at a time
func (c Config) LockPath() string {
	return filepath.Join(c.OutputDirectory, ".feedwiki.lock")
}
