// Package config loads cache settings from YAML or JSON and turns them into
// cache.Options.
//
//	capacity: 10000
//	policy: lfu          # lru | 2q | simple2q | lfu
//	twoq:
//	  in: 2500
//	  out: 5000
//	simple2q:
//	  threshold: 2500
//	lfu:
//	  age_policy: 1000
//
// Omitted tuning values fall back to the policy defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/IvanBrykalov/slotcache/cache"
	"github.com/IvanBrykalov/slotcache/policy"
	"github.com/IvanBrykalov/slotcache/policy/lfu"
	"github.com/IvanBrykalov/slotcache/policy/lru"
	"github.com/IvanBrykalov/slotcache/policy/simple2q"
	"github.com/IvanBrykalov/slotcache/policy/twoq"
)

// Format is the encoding of a settings document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Policy names accepted in the "policy" field.
const (
	PolicyLRU      = "lru"
	PolicyTwoQ     = "2q"
	PolicySimple2Q = "simple2q"
	PolicyLFU      = "lfu"
)

var (
	ErrUnsupportedFormat = errors.New("config: unsupported format")
	ErrLoad              = errors.New("config: load failed")
	ErrParse             = errors.New("config: parse failed")
)

// Settings is the decoded settings document. Zero tuning values mean
// "use the policy default".
type Settings struct {
	Capacity int    `koanf:"capacity"`
	Policy   string `koanf:"policy"`

	TwoQ struct {
		In  int `koanf:"in"`
		Out int `koanf:"out"`
	} `koanf:"twoq"`

	Simple2Q struct {
		Threshold int `koanf:"threshold"`
	} `koanf:"simple2q"`

	LFU struct {
		AgePolicy int `koanf:"age_policy"`
	} `koanf:"lfu"`
}

// Load reads path, detecting the format from its extension.
func Load(path string) (Settings, error) {
	format, err := detectFormat(path)
	if err != nil {
		return Settings{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return Parse(data, format)
}

// Parse decodes data and validates the result.
func Parse(data []byte, format Format) (Settings, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return Settings{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return Settings{}, fmt.Errorf("%w: %w", ErrParse, err)
		}
	}

	var s Settings
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if s.Policy == "" {
		s.Policy = PolicyLRU
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports settings that no cache could be built from.
func (s Settings) Validate() error {
	if s.Capacity <= 0 {
		return fmt.Errorf("%w: capacity %d must be > 0", cache.ErrInvalidConfig, s.Capacity)
	}
	switch strings.ToLower(s.Policy) {
	case PolicyLRU, "":
	case PolicyTwoQ:
		if s.TwoQ.In < 0 || s.TwoQ.Out < 0 {
			return fmt.Errorf("%w: twoq.in=%d twoq.out=%d", cache.ErrInvalidConfig, s.TwoQ.In, s.TwoQ.Out)
		}
	case PolicySimple2Q:
		if s.Simple2Q.Threshold < 0 {
			return fmt.Errorf("%w: simple2q.threshold=%d", cache.ErrInvalidConfig, s.Simple2Q.Threshold)
		}
	case PolicyLFU:
		if s.LFU.AgePolicy < 0 {
			return fmt.Errorf("%w: lfu.age_policy=%d", cache.ErrInvalidConfig, s.LFU.AgePolicy)
		}
	default:
		return fmt.Errorf("%w: unknown policy %q", cache.ErrInvalidConfig, s.Policy)
	}
	return nil
}

// BuildPolicy returns the policy factory described by s.
func BuildPolicy[K comparable](s Settings) (policy.Factory[K], error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(s.Policy) {
	case PolicyTwoQ:
		if s.TwoQ.In == 0 && s.TwoQ.Out == 0 {
			return twoq.New[K](), nil
		}
		in, out := s.TwoQ.In, s.TwoQ.Out
		if in == 0 {
			in = max(s.Capacity/4, 1)
		}
		if out == 0 {
			out = max(s.Capacity/2, 1)
		}
		return twoq.NewWithSizes[K](in, out), nil
	case PolicySimple2Q:
		if s.Simple2Q.Threshold == 0 {
			return simple2q.New[K](), nil
		}
		return simple2q.NewWithThreshold[K](s.Simple2Q.Threshold), nil
	case PolicyLFU:
		if s.LFU.AgePolicy == 0 {
			return lfu.New[K](), nil
		}
		return lfu.NewWithAgePolicy[K](s.LFU.AgePolicy), nil
	default:
		return lru.New[K](), nil
	}
}

// Options returns cache.Options with Capacity and Policy filled from s.
// Loader, Observer and Metrics are left for the caller.
func Options[K comparable, V any](s Settings) (cache.Options[K, V], error) {
	f, err := BuildPolicy[K](s)
	if err != nil {
		return cache.Options[K, V]{}, err
	}
	return cache.Options[K, V]{Capacity: s.Capacity, Policy: f}, nil
}

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}
