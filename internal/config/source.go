package config

import (
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Source serves the current configuration to readers that must not cache it.
// Readers always see a complete Config; a reload swaps the whole value.
type Source struct {
	v   *viper.Viper
	cur atomic.Pointer[Config]
}

// NewSource returns a Source that always serves cfg.
func NewSource(cfg *Config) *Source {
	s := &Source{}
	s.cur.Store(cfg)
	return s
}

// LoadSource loads the configuration like Load and keeps the loader around so the
// file can be watched for changes.
func LoadSource(path string) (*Source, error) {
	v := newViper(path)
	cfg, err := readConfig(v, path)
	if err != nil {
		return nil, err
	}
	s := &Source{v: v}
	s.cur.Store(cfg)
	return s, nil
}

// Config returns the current configuration.
func (s *Source) Config() *Config {
	return s.cur.Load()
}

// Store replaces the current configuration.
func (s *Source) Store(cfg *Config) {
	s.cur.Store(cfg)
}

// GenerationDefaults returns the sampling defaults of the current configuration.
func (s *Source) GenerationDefaults() Defaults {
	return s.Config().Defaults
}

// DefaultInstruction returns the default instruction text of the current configuration.
func (s *Source) DefaultInstruction() string {
	return s.Config().SystemInstruction
}

// Watch reloads the configuration whenever the config file changes. A reload that
// fails to decode or validate keeps the previous configuration. onReload, if not nil,
// is called after every attempt. Watch is a no-op for sources made with NewSource.
func (s *Source) Watch(onReload func(*Config, error)) {
	if s.v == nil {
		return
	}
	s.v.OnConfigChange(func(fsnotify.Event) {
		var cfg Config
		err := s.v.Unmarshal(&cfg)
		if err == nil {
			err = cfg.Validate()
		}
		if err == nil {
			s.cur.Store(&cfg)
		}
		if onReload != nil {
			onReload(&cfg, err)
		}
	})
	s.v.WatchConfig()
}
