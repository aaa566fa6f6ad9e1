package troop

import (
	"fmt"
	"strings"
)

type Mode string

const (
	// ModeRelief divides every new value by ReliefDivisor (floor).
	ModeRelief Mode = "relief"
	// ModeBounded reduces every new value modulo the product of all divisors.
	ModeBounded Mode = "bounded"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRelief:
		return ModeRelief, nil
	case ModeBounded, "precise":
		return ModeBounded, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadMode, s)
}

type Config struct {
	Mode Mode

	// ReliefDivisor applies to ModeRelief only. Defaults to 3.
	ReliefDivisor int64
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeRelief
	}
	if c.ReliefDivisor <= 0 {
		c.ReliefDivisor = 3
	}
}
