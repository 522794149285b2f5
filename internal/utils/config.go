package util

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Options represents database configuration options.
type Options struct {
	Path             string `yaml:"path"`
	PoolSize         int    `yaml:"pool_size"`
	ReplacerK        int    `yaml:"replacer_k"`
	ReplacerPolicy   string `yaml:"replacer_policy"` // "lruk" or "clock"
	SchedulerWorkers int    `yaml:"scheduler_workers"`

	HeaderMaxDepth    uint32 `yaml:"header_max_depth"`
	DirectoryMaxDepth uint32 `yaml:"directory_max_depth"`
	BucketMaxSize     uint32 `yaml:"bucket_max_size"`
}

// DefaultOptions returns default database options.
func DefaultOptions() Options {
	return Options{
		Path:              "hashdb.dat",
		PoolSize:          128, // 512KB buffer pool
		ReplacerK:         2,
		ReplacerPolicy:    "lruk",
		SchedulerWorkers:  1,
		HeaderMaxDepth:    9,
		DirectoryMaxDepth: 9,
		BucketMaxSize:     255,
	}
}

// LoadOptions reads a YAML options file and overlays it on the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.Wrapf(err, "read options file %s", path)
	}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return opts, errors.Wrapf(err, "parse options file %s", path)
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Validate rejects option combinations the storage layer cannot honor.
func (o *Options) Validate() error {
	if o.PoolSize <= 0 {
		return ErrInvalidPoolSize
	}
	if o.ReplacerK <= 0 {
		return ErrInvalidReplacerK
	}
	if o.SchedulerWorkers <= 0 {
		return errors.New("scheduler workers must be positive")
	}
	return nil
}
