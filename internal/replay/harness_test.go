package replay

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"

	"github.com/danielpatrickdp/stopper/internal/policy"
	"github.com/danielpatrickdp/stopper/internal/stopper"
)

// helper: fixture over values with frequency 1 and no tolerance.
func seriesFixture(direction string, patience int, values ...float64) *Fixture {
	ptrs := make([]*float64, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	return &Fixture{
		Config: FixtureConfig{Frequency: 1, Patience: patience, Metric: "mrr", Direction: direction},
		Values: ptrs,
	}
}

func actions(results []ReplayResult) []policy.Action {
	out := make([]policy.Action, len(results))
	for i, r := range results {
		out[i] = r.Action
	}
	return out
}

// 1. Flat series: baseline then patience runs out.
func TestReplay_FlatSeriesStops(t *testing.T) {
	f := seriesFixture("maximize", 2, 0.5, 0.5, 0.5, 0.5)
	results, sum, err := Replay(context.Background(), f, testr.New(t))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	want := []policy.Action{policy.ActionBaseline, policy.ActionNoImprove, policy.ActionExhausted}
	if !slices.Equal(actions(results), want) {
		t.Fatalf("actions = %v, want %v", actions(results), want)
	}
	if sum.StopEpoch == nil || *sum.StopEpoch != 3 || sum.EpochsTrained != 3 {
		t.Fatalf("expected stop at epoch 3, got %+v", sum)
	}
	if *sum.Final.BestEpoch != 1 {
		t.Errorf("expected best epoch 1 (first occurrence), got %d", *sum.Final.BestEpoch)
	}
}

// 2. Thresholds are reported for every non-baseline result.
func TestReplay_ReportsThresholds(t *testing.T) {
	f := seriesFixture("minimize", 2, 2.0, 1.0, 1.5)
	f.Config.RelativeDelta = 0.1
	results, _, err := Replay(context.Background(), f, testr.New(t))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Threshold != 0 {
		t.Errorf("baseline threshold = %v, want 0", results[0].Threshold)
	}
	if results[1].Threshold != 1.8 || results[1].Action != policy.ActionImproved {
		t.Errorf("epoch 2: got %+v", results[1])
	}
	if results[2].Threshold != 0.9 || results[2].Action != policy.ActionNoImprove {
		t.Errorf("epoch 3: got %+v", results[2])
	}
}

// 3. Invalid config surfaces as a configuration error.
func TestReplay_InvalidConfig(t *testing.T) {
	f := seriesFixture("sideways", 2, 0.1)
	if _, _, err := Replay(context.Background(), f, testr.New(t)); !errors.Is(err, stopper.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	f = seriesFixture("maximize", 0, 0.1)
	if _, _, err := Replay(context.Background(), f, testr.New(t)); !errors.Is(err, stopper.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for zero patience, got %v", err)
	}
}

// 4. Check reports every kind of mismatch.
func TestCheck_Mismatches(t *testing.T) {
	f := seriesFixture("maximize", 2, 0.5, 0.5, 0.5)
	stop, best, metric := 2, 3, 0.9
	f.Expected = &FixtureExpected{
		StopEpoch:  &stop,
		BestEpoch:  &best,
		BestMetric: &metric,
		Actions:    []string{"baseline", "improved"},
	}
	results, sum, err := Replay(context.Background(), f, testr.New(t))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	got := strings.Join(Check(f, results, sum), "\n")
	for _, want := range []string{
		"stop_epoch: expected 2, got 3",
		"best_epoch: expected 3, got 1",
		"best_metric: expected 0.9, got 0.5",
		"actions: expected 2, got 3",
		"epoch 2: expected action=improved, got action=no_improvement",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing mismatch %q in:\n%s", want, got)
		}
	}

	f.Expected = nil
	if m := Check(f, results, sum); m != nil {
		t.Errorf("expected no mismatches without expectations, got %v", m)
	}
}

// 5. Deterministic: same inputs → same outputs.
func TestReplay_Deterministic(t *testing.T) {
	f := seriesFixture("maximize", 3, 0.1, 0.3, 0.2, 0.35, 0.31, 0.3, 0.2)
	r1, s1, _ := Replay(context.Background(), f, testr.New(t))
	r2, s2, _ := Replay(context.Background(), f, testr.New(t))
	if !slices.Equal(r1, r2) {
		t.Fatalf("results differ:\n%v\n%v", r1, r2)
	}
	if !slices.Equal(s1.Final.Results, s2.Final.Results) || *s1.StopEpoch != *s2.StopEpoch {
		t.Fatalf("summaries differ: %+v vs %+v", s1, s2)
	}
}
