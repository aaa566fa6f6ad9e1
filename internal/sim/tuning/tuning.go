package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	Relief  Relief  `yaml:"relief" json:"relief"`
	Bounded Bounded `yaml:"bounded" json:"bounded"`

	RoundRateHz         int `yaml:"round_rate_hz" json:"round_rate_hz"`
	SnapshotEveryRounds int `yaml:"snapshot_every_rounds" json:"snapshot_every_rounds"`

	Observer Observer `yaml:"observer" json:"observer"`
}

type Relief struct {
	Rounds  int   `yaml:"rounds" json:"rounds"`
	Divisor int64 `yaml:"divisor" json:"divisor"`
}

type Bounded struct {
	Rounds int `yaml:"rounds" json:"rounds"`
}

type Observer struct {
	EveryRounds int `yaml:"every_rounds" json:"every_rounds"`
	MaxSessions int `yaml:"max_sessions" json:"max_sessions"`
}

func Defaults() Tuning {
	return Tuning{
		Relief:              Relief{Rounds: 20, Divisor: 3},
		Bounded:             Bounded{Rounds: 10000},
		SnapshotEveryRounds: 1000,
		Observer:            Observer{EveryRounds: 100, MaxSessions: 64},
	}
}

// Load reads path over the defaults; keys missing from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Relief.Rounds < 0 || t.Bounded.Rounds < 0 {
		return fmt.Errorf("round counts must not be negative")
	}
	if t.Relief.Divisor <= 0 {
		return fmt.Errorf("relief.divisor must be positive, got %d", t.Relief.Divisor)
	}
	if t.RoundRateHz < 0 {
		return fmt.Errorf("round_rate_hz must not be negative")
	}
	if t.SnapshotEveryRounds < 0 {
		return fmt.Errorf("snapshot_every_rounds must not be negative")
	}
	if t.Observer.EveryRounds <= 0 {
		return fmt.Errorf("observer.every_rounds must be positive")
	}
	if t.Observer.MaxSessions <= 0 {
		return fmt.Errorf("observer.max_sessions must be positive")
	}
	return nil
}
