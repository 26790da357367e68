package anneal

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/subcrack/internal/cipher"
	"github.com/danielpatrickdp/subcrack/internal/neighbor"
)

// ErrInvalidConfig is wrapped by Config.Validate failures.
var ErrInvalidConfig = errors.New("invalid optimizer config")

// #region mode

// Mode selects how the temperature evolves during a run.
type Mode string

const (
	ModeAnnealing Mode = "annealing" // geometric cooling
	ModeFixed     Mode = "fixed"     // constant temperature
)

// Start selects the initial mapping of a run.
type Start string

const (
	StartFrequency Start = "frequency" // frequency-rank matching
	StartIdentity  Start = "identity"  // search from the raw ciphertext
)

// Phase is the optimizer state-machine position.
type Phase string

const (
	PhaseInit      Phase = "init"
	PhaseIterate   Phase = "iterate"
	PhaseCool      Phase = "cool"
	PhaseTerminate Phase = "terminate"
)

// #endregion mode

// #region config

// Config holds the search schedule.
type Config struct {
	Mode               Mode    `yaml:"mode" json:"mode"`
	Iterations         int     `yaml:"iterations" json:"iterations"`
	InitialTemperature float64 `yaml:"initial_temperature" json:"initial_temperature"`
	FloorTemperature   float64 `yaml:"floor_temperature" json:"floor_temperature"` // annealing only
	CoolingInterval    int     `yaml:"cooling_interval" json:"cooling_interval"`   // annealing only
	TrackBest          bool    `yaml:"track_best" json:"track_best"`
	Start              Start   `yaml:"start" json:"start"`
}

// DefaultConfig returns the annealing schedule: 10000 steps, T from 10 to
// 0.1, cooled every 100 steps.
func DefaultConfig() Config {
	return Config{
		Mode:               ModeAnnealing,
		Iterations:         10000,
		InitialTemperature: 10,
		FloorTemperature:   0.1,
		CoolingInterval:    100,
		Start:              StartFrequency,
	}
}

// DefaultFixedConfig returns a fixed-temperature schedule at T = 1.
func DefaultFixedConfig() Config {
	return Config{
		Mode:               ModeFixed,
		Iterations:         10000,
		InitialTemperature: 1,
		Start:              StartFrequency,
	}
}

// Validate reports schedule values the optimizer cannot run with.
func (c Config) Validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidConfig, c.Iterations)
	}
	if c.InitialTemperature < 0 || math.IsNaN(c.InitialTemperature) {
		return fmt.Errorf("%w: initial temperature must be >= 0, got %v", ErrInvalidConfig, c.InitialTemperature)
	}
	switch c.Start {
	case "", StartFrequency, StartIdentity:
	default:
		return fmt.Errorf("%w: unknown start %q", ErrInvalidConfig, c.Start)
	}
	switch c.Mode {
	case ModeFixed:
		return nil
	case ModeAnnealing:
		if c.InitialTemperature <= 0 || c.FloorTemperature <= 0 {
			return fmt.Errorf("%w: annealing temperatures must be positive", ErrInvalidConfig)
		}
		if c.FloorTemperature > c.InitialTemperature {
			return fmt.Errorf("%w: floor %v above initial %v", ErrInvalidConfig, c.FloorTemperature, c.InitialTemperature)
		}
		if c.CoolingInterval <= 0 {
			return fmt.Errorf("%w: cooling interval must be positive, got %d", ErrInvalidConfig, c.CoolingInterval)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
}

// CoolingRatio returns a = (floor/initial)^(1/(iterations/interval)), the
// factor applied at every cooling step. Fixed mode returns 1.
func CoolingRatio(c Config) float64 {
	if c.Mode != ModeAnnealing {
		return 1
	}
	steps := float64(c.Iterations) / float64(c.CoolingInterval)
	return math.Pow(c.FloorTemperature/c.InitialTemperature, 1/steps)
}

// #endregion config

// #region state

// SearchState is owned by a single run.
type SearchState struct {
	Mapping     cipher.Mapping
	Score       float64
	Temperature float64
	Iteration   int
	Phase       Phase
}

// Step is reported to observers after every iteration.
type Step struct {
	Iteration   int   // 1-based count of completed iterations
	Phase       Phase // PhaseCool on iterations that lowered the temperature
	Temperature float64
	Move        neighbor.Move
	Current     float64 // score before the step
	Candidate   float64
	Decision    Decision
}

// Observer receives run progress. Implementations must be cheap; OnStep is
// called once per iteration.
type Observer interface {
	OnStep(Step)
	OnFinish(Result)
}

// Snapshot is a scored mapping at some iteration.
type Snapshot struct {
	Mapping   cipher.Mapping
	Plaintext string
	Score     float64
	Iteration int
}

// Result is returned by Run. Mapping and Score are the final state, which
// is not necessarily the best state visited.
type Result struct {
	Mapping          cipher.Mapping
	Plaintext        string
	Score            float64
	InitialMapping   cipher.Mapping
	InitialScore     float64
	CiphertextScore  float64
	Iterations       int
	Accepted         int
	Rejected         int
	FinalTemperature float64
	Cancelled        bool
	Best             *Snapshot // set only when Config.TrackBest
}

// #endregion state
