package am

import "github.com/teranos/doxa/errors"

// DefaultServerPort is used when [server].port is absent.
const DefaultServerPort = 8090

// Validate checks a loaded Config for values that would misbehave at
// runtime. A nil port means "use the default"; an explicit zero or
// out-of-range port is rejected.
func Validate(cfg *Config) error {
	if cfg.Server.Port != nil {
		port := *cfg.Server.Port
		if port <= 0 || port > 65535 {
			return errors.Newf("invalid server port %d (want 1-65535)", port)
		}
	}

	if cfg.Inference.MaxRounds < 0 {
		return errors.Newf("inference.max_rounds must be >= 0, got %d", cfg.Inference.MaxRounds)
	}
	if cfg.Inference.MaxDerivations < 0 {
		return errors.Newf("inference.max_derivations must be >= 0, got %d", cfg.Inference.MaxDerivations)
	}

	if _, err := cfg.OverlapPolicy(); err != nil {
		return err
	}
	return nil
}

// ServerPort resolves the effective listen port.
func (c *Config) ServerPort() int {
	if c.Server.Port == nil {
		return DefaultServerPort
	}
	return *c.Server.Port
}
