package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/stopper/internal/stopper"
)

// #region fixture-types

// Fixture is the top-level structure of a replay fixture. Values[i] is the
// metric observed at the (i+1)-th evaluation epoch, i.e. epoch
// (i+1)*frequency; a null value marks an evaluation that was unavailable.
type Fixture struct {
	Description string           `json:"description" yaml:"description"`
	Config      FixtureConfig    `json:"config" yaml:"config"`
	Values      []*float64       `json:"values" yaml:"values"`
	MaxEpochs   int              `json:"max_epochs,omitempty" yaml:"max_epochs,omitempty"`
	Expected    *FixtureExpected `json:"expected,omitempty" yaml:"expected,omitempty"`
}

// FixtureConfig mirrors stopper.Config without the enabled switch.
type FixtureConfig struct {
	Frequency     int     `json:"frequency" yaml:"frequency"`
	Patience      int     `json:"patience" yaml:"patience"`
	RelativeDelta float64 `json:"relative_delta" yaml:"relative_delta"`
	Metric        string  `json:"metric" yaml:"metric"`
	Direction     string  `json:"direction" yaml:"direction"`
}

// FixtureExpected captures the expected outcome. A nil StopEpoch means the
// series must run to completion without stopping.
type FixtureExpected struct {
	StopEpoch  *int     `json:"stop_epoch" yaml:"stop_epoch"`
	BestEpoch  *int     `json:"best_epoch" yaml:"best_epoch"`
	BestMetric *float64 `json:"best_metric,omitempty" yaml:"best_metric,omitempty"`
	Actions    []string `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads a fixture file. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Values) == 0 {
		return nil, fmt.Errorf("fixture %s: no values", path)
	}
	return &f, nil
}

// StopperConfig converts the fixture config to an enabled stopper.Config.
func (fc FixtureConfig) StopperConfig() stopper.Config {
	return stopper.Config{
		Enabled:       true,
		Frequency:     fc.Frequency,
		Patience:      fc.Patience,
		RelativeDelta: fc.RelativeDelta,
		Metric:        fc.Metric,
		Direction:     stopper.Direction(fc.Direction),
	}
}

// Series maps each evaluation epoch to its value (nil when unavailable).
func (f *Fixture) Series() map[int]*float64 {
	freq := max(f.Config.Frequency, 1)
	series := make(map[int]*float64, len(f.Values))
	for i, v := range f.Values {
		series[(i+1)*freq] = v
	}
	return series
}

// Epochs returns how many epochs a replay of f trains.
func (f *Fixture) Epochs() int {
	if f.MaxEpochs > 0 {
		return f.MaxEpochs
	}
	return len(f.Values) * max(f.Config.Frequency, 1)
}

// Evaluator serves the fixture's series by epoch. Unknown epochs and null
// values fail like an unreachable evaluation backend.
func (f *Fixture) Evaluator() stopper.Evaluator {
	series := f.Series()
	return stopper.EvaluatorFunc(func(_ context.Context, epoch int) (float64, error) {
		v, ok := series[epoch]
		if !ok {
			return 0, fmt.Errorf("%w: epoch %d", ErrNoValue, epoch)
		}
		if v == nil {
			return 0, fmt.Errorf("%w: epoch %d", ErrUnavailable, epoch)
		}
		return *v, nil
	})
}

// #endregion fixture-loader
