package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/stopper/internal/tracker"
)

// #region export
// FixtureFromHistory turns a recorded metric history into a fixture. Each
// cadence epoch up to the last recorded step becomes one value; cadence
// epochs without a recorded value become null. stopEpoch and bestEpoch, when
// known, become the fixture's expectations.
func FixtureFromHistory(cfg FixtureConfig, points []tracker.Point, stopEpoch, bestEpoch *int) (*Fixture, error) {
	if cfg.Frequency < 1 {
		return nil, fmt.Errorf("fixture frequency must be positive, got %d", cfg.Frequency)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no recorded values for %s", cfg.Metric)
	}
	byStep := make(map[int]float64, len(points))
	last := 0
	for _, p := range points {
		if p.Step%cfg.Frequency != 0 || p.Step < 1 {
			return nil, fmt.Errorf("step %d is not an evaluation epoch for frequency %d", p.Step, cfg.Frequency)
		}
		byStep[p.Step] = p.Value
		last = max(last, p.Step)
	}

	f := &Fixture{Config: cfg}
	for epoch := cfg.Frequency; epoch <= last; epoch += cfg.Frequency {
		if v, ok := byStep[epoch]; ok {
			f.Values = append(f.Values, &v)
		} else {
			f.Values = append(f.Values, nil)
		}
	}
	if stopEpoch != nil || bestEpoch != nil {
		f.Expected = &FixtureExpected{StopEpoch: stopEpoch, BestEpoch: bestEpoch}
	}
	return f, nil
}

// SaveFixture writes f as YAML for .yaml/.yml paths and as indented JSON otherwise.
func SaveFixture(path string, f *Fixture) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(f)
	default:
		data, err = json.MarshalIndent(f, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion export
