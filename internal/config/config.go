// Package config loads cracking session settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"odfbrute/internal/candidate"
	"odfbrute/internal/manifest"
)

var validate = validator.New()

type Config struct {
	Workers int    `yaml:"workers" validate:"min=1,max=4096"`
	Entry   string `yaml:"entry" validate:"required"`
	// Output is where the decrypted container is written; empty means
	// <name>.decrypted.<ext> next to the input.
	Output string `yaml:"output"`

	Words    []string `yaml:"words"`
	Wordlist string   `yaml:"wordlist"`
	// Charset is a literal alphabet or preset names joined with '+'.
	Charset   string `yaml:"charset"`
	MinLength int    `yaml:"min_length" validate:"min=0,max=32"`
	MaxLength int    `yaml:"max_length" validate:"min=0,max=32,gtefield=MinLength"`

	LogLevel         string        `yaml:"log_level" validate:"oneof=trace debug info warn warning error"`
	ProgressInterval time.Duration `yaml:"progress_interval" validate:"min=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"min=0"`
}

func Default() Config {
	return Config{
		Workers:          runtime.NumCPU(),
		Entry:            manifest.DefaultEntry,
		Charset:          "lower+digits",
		MinLength:        1,
		MaxLength:        4,
		LogLevel:         "info",
		ProgressInterval: time.Second,
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if c.Charset == "" && c.Wordlist == "" && len(c.Words) == 0 {
		return errors.New("no candidate source: set words, wordlist or charset")
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Logger builds a logrus logger at the configured level.
func (c *Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetLevel(level)
	return l, nil
}

// Source assembles the candidate stream: literal words first, then the
// wordlist, then the charset enumeration. The charset is only used when
// no other source is configured or it was set explicitly.
func (c *Config) Source(charsetExplicit bool) (candidate.Source, *candidate.Wordlist, *candidate.Charset, error) {
	var sources []candidate.Source
	if len(c.Words) > 0 {
		sources = append(sources, candidate.List(c.Words...))
	}
	var wl *candidate.Wordlist
	if c.Wordlist != "" {
		wl = candidate.NewWordlist(c.Wordlist)
		sources = append(sources, wl.All())
	}
	var cs *candidate.Charset
	if c.Charset != "" && (len(sources) == 0 || charsetExplicit) {
		var err error
		cs, err = candidate.NewCharset(candidate.ResolveCharset(c.Charset), c.MinLength, c.MaxLength)
		if err != nil {
			return nil, nil, nil, err
		}
		sources = append(sources, cs.All())
	}
	if len(sources) == 0 {
		return nil, nil, nil, errors.New("no candidate source configured")
	}
	return candidate.Chain(sources...), wl, cs, nil
}
