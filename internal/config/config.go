// Package config loads the daemon settings from a Java-style properties
// file. The key set is flat and dotted, and several keys are prefixes of
// other keys (staging.directory, staging.directory.base), so the file is
// read with a flat properties parser instead of a nesting config format.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/magiconair/properties"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/errors"
)

// maxExclusionKeys bounds the bundler.entry_path_exclusion.N scan. Gaps
// in the numbering are allowed and skipped.
const maxExclusionKeys = 32

// Config carries every setting the daemon reads at startup. Archive
// sizes are in megabytes, like the request field they clamp.
type Config struct {
	ServerAddress   string
	ServerDebug     bool
	ShutdownTimeout time.Duration

	StagingDirectory     string
	StagingDirectoryBase string
	BaseURL              string
	EntryPathExclusions  []string

	S3Endpoint string
	S3Region   string
	S3UseSSL   bool
	IAMRole    string
	AccessKey  string
	SecretKey  string

	MinArchiveSize     int64
	MaxArchiveSize     int64
	DefaultArchiveSize int64

	CompressionPercentage int64

	BundleRequestDirectory string
	HashType               bundler.HashType

	DatabaseType string
	DatabasePath string

	RetryMaxElapsed time.Duration
}

// Load reads the properties file at path. An empty path yields the
// built-in defaults, which fail validation because the staging directory
// is required.
func Load(path string) (*Config, error) {
	p := properties.NewProperties()
	if path != "" {
		var err error
		p, err = properties.LoadFile(path, properties.UTF8)
		if err != nil {
			return nil, errors.Wrap(err, "LoadFile")
		}
	}
	return parse(p)
}

func parse(p *properties.Properties) (*Config, error) {
	cfg := &Config{
		ServerAddress:          p.GetString("server.address", ":8080"),
		ServerDebug:            p.GetBool("server.debug", false),
		StagingDirectory:       p.GetString("staging.directory", ""),
		StagingDirectoryBase:   p.GetString("staging.directory.base", ""),
		BaseURL:                p.GetString("base.url", ""),
		S3Endpoint:             p.GetString("s3.endpoint", "s3.amazonaws.com"),
		S3Region:               p.GetString("s3.region", ""),
		S3UseSSL:               p.GetBool("s3.use.ssl", true),
		IAMRole:                p.GetString("iam.role", ""),
		AccessKey:              p.GetString("access.key", ""),
		SecretKey:              p.GetString("secret.key", ""),
		BundleRequestDirectory: p.GetString("bundle.request.directory", ""),
		DatabaseType:           p.GetString("database.type", "memory"),
		DatabasePath:           p.GetString("database.path", "bundler.db"),
	}

	for _, field := range []struct {
		dst *int64
		key string
		def int64
	}{
		{&cfg.MinArchiveSize, "min.archive.size", 20},
		{&cfg.MaxArchiveSize, "max.archive.size", 1000},
		{&cfg.DefaultArchiveSize, "default.archive.size", 400},
		{&cfg.CompressionPercentage, "average.compression.percentage", 25},
	} {
		v, err := intValue(p, field.key, field.def)
		if err != nil {
			return nil, err
		}
		*field.dst = v
	}

	var err error
	cfg.ShutdownTimeout, err = durationValue(p, "server.shutdown.timeout", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.RetryMaxElapsed, err = durationValue(p, "retry.max.elapsed", time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.HashType, err = bundler.ParseHashType(p.GetString("hash.type", string(bundler.HashSHA1)))
	if err != nil {
		return nil, err
	}

	for i := 0; i < maxExclusionKeys; i++ {
		key := fmt.Sprintf("bundler.entry_path_exclusion.%d", i)
		if s := p.GetString(key, ""); s != "" {
			cfg.EntryPathExclusions = append(cfg.EntryPathExclusions, s)
		}
	}

	if cfg.StagingDirectoryBase == "" {
		cfg.StagingDirectoryBase = cfg.StagingDirectory
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// intValue parses key strictly; the lenient GetInt64 would fold typos
// into the default.
func intValue(p *properties.Properties, key string, def int64) (int64, error) {
	s, ok := p.Get(key)
	if !ok || strings.TrimSpace(s) == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %v", key)
	}
	return v, nil
}

func durationValue(p *properties.Properties, key string, def time.Duration) (time.Duration, error) {
	s, ok := p.Get(key)
	if !ok || strings.TrimSpace(s) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "parse %v", key)
	}
	return d, nil
}

func (c *Config) validate() error {
	if c.StagingDirectory == "" {
		return errors.Fatal("config: staging.directory is not set")
	}
	if c.MinArchiveSize <= 0 || c.MaxArchiveSize < c.MinArchiveSize {
		return errors.Fatalf("config: archive size bounds [%d, %d] MB are inconsistent",
			c.MinArchiveSize, c.MaxArchiveSize)
	}
	if c.DefaultArchiveSize < c.MinArchiveSize || c.DefaultArchiveSize > c.MaxArchiveSize {
		return errors.Fatalf("config: default.archive.size %d MB outside [%d, %d]",
			c.DefaultArchiveSize, c.MinArchiveSize, c.MaxArchiveSize)
	}
	if c.CompressionPercentage < 0 || c.CompressionPercentage > 100 {
		return errors.Fatalf("config: average.compression.percentage %d outside [0, 100]",
			c.CompressionPercentage)
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return errors.Fatal("config: access.key and secret.key must be set together")
	}

	switch c.DatabaseType {
	case "memory", "sqlite":
	default:
		return errors.Fatalf("config: unknown database.type %q", c.DatabaseType)
	}
	return nil
}

// S3Configured reports whether the credential settings allow an s3
// provider to be constructed.
func (c *Config) S3Configured() bool {
	return c.IAMRole != "" || (c.AccessKey != "" && c.SecretKey != "")
}
