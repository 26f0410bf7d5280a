package stopper

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/google/go-cmp/cmp"
)

// #region helpers
// seriesEvaluator returns values[i] on its i-th call and records the epochs it saw.
type seriesEvaluator struct {
	values []float64
	epochs []int
	err    error
}

func (e *seriesEvaluator) Evaluate(_ context.Context, epoch int) (float64, error) {
	if e.err != nil {
		return 0, e.err
	}
	e.epochs = append(e.epochs, epoch)
	if len(e.epochs) > len(e.values) {
		return 0, errors.New("series exhausted")
	}
	return e.values[len(e.epochs)-1], nil
}

func testConfig(frequency, patience int, delta float64, dir Direction) Config {
	return Config{
		Enabled:       true,
		Frequency:     frequency,
		Patience:      patience,
		RelativeDelta: delta,
		Metric:        "hits_at_10",
		Direction:     dir,
	}
}

func newTestStopper(t *testing.T, cfg Config, values ...float64) (*EarlyStopper, *seriesEvaluator) {
	t.Helper()
	ev := &seriesEvaluator{values: values}
	s, err := NewEarlyStopper(cfg, ev, WithLogger(testr.New(t)))
	if err != nil {
		t.Fatalf("NewEarlyStopper: %v", err)
	}
	return s, ev
}

func mustStop(t *testing.T, s Stopper, epoch int) bool {
	t.Helper()
	stop, err := s.ShouldStop(context.Background(), epoch)
	if err != nil {
		t.Fatalf("ShouldStop(%d): %v", epoch, err)
	}
	return stop
}

// #endregion helpers

// #region construction-tests
func TestNewEarlyStopperRejectsBadConfig(t *testing.T) {
	ev := &seriesEvaluator{}
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero frequency", testConfig(0, 2, 0, Maximize)},
		{"negative patience", testConfig(1, -1, 0, Maximize)},
		{"negative delta", testConfig(1, 2, -0.5, Maximize)},
		{"unknown direction", testConfig(1, 2, 0, "sideways")},
		{"empty metric", Config{Enabled: true, Frequency: 1, Patience: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewEarlyStopper(tc.cfg, ev)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestNewEarlyStopperRequiresEvaluator(t *testing.T) {
	_, err := NewEarlyStopper(DefaultConfig(), nil)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewDisabledReturnsNop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(NopStopper); !ok {
		t.Fatalf("expected NopStopper, got %T", s)
	}
}

func TestNewEnabledReturnsEarlyStopper(t *testing.T) {
	s, err := New(DefaultConfig(), &seriesEvaluator{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(*EarlyStopper); !ok {
		t.Fatalf("expected *EarlyStopper, got %T", s)
	}
}

func TestFreshState(t *testing.T) {
	s, _ := newTestStopper(t, testConfig(5, 3, 0.01, Minimize))
	if s.Phase() != PhaseFresh {
		t.Errorf("expected fresh phase, got %s", s.Phase())
	}
	if _, ok := s.BestEpoch(); ok {
		t.Error("expected no best epoch")
	}
	sum := s.Summary()
	if sum.LargerIsBetter || sum.RemainingPatience != 3 || len(sum.Results) != 0 {
		t.Errorf("unexpected fresh summary %+v", sum)
	}
}

// #endregion construction-tests

// #region cadence-tests
func TestShouldEvaluateCadence(t *testing.T) {
	s, _ := newTestStopper(t, testConfig(5, 2, 0, Maximize))
	for epoch := -5; epoch <= 30; epoch++ {
		want := epoch > 0 && epoch%5 == 0
		if got := s.ShouldEvaluate(epoch); got != want {
			t.Errorf("ShouldEvaluate(%d) = %v, want %v", epoch, got, want)
		}
	}
}

func TestOffCadenceHasNoSideEffects(t *testing.T) {
	s, ev := newTestStopper(t, testConfig(3, 2, 0, Maximize), 0.5)
	before := s.Summary()
	for _, epoch := range []int{0, 1, 2, 4} {
		if mustStop(t, s, epoch) {
			t.Fatalf("unexpected stop at epoch %d", epoch)
		}
	}
	if len(ev.epochs) != 0 {
		t.Fatalf("evaluator called off cadence: %v", ev.epochs)
	}
	if diff := cmp.Diff(before, s.Summary()); diff != "" {
		t.Fatalf("summary changed off cadence:\n%s", diff)
	}
}

// #endregion cadence-tests

// #region patience-tests
func TestPatienceScenario(t *testing.T) {
	s, _ := newTestStopper(t, testConfig(1, 2, 0, Maximize), 0.5, 0.5, 0.5)

	steps := []struct {
		remaining int
		stopped   bool
	}{
		{2, false},
		{1, false},
		{0, true},
	}
	for i, want := range steps {
		epoch := i + 1
		stop := mustStop(t, s, epoch)
		sum := s.Summary()
		if stop != want.stopped || sum.Stopped != want.stopped {
			t.Errorf("epoch %d: stopped = %v, want %v", epoch, stop, want.stopped)
		}
		if sum.RemainingPatience != want.remaining {
			t.Errorf("epoch %d: remaining_patience = %d, want %d", epoch, sum.RemainingPatience, want.remaining)
		}
	}
	if s.Phase() != PhaseStopped {
		t.Errorf("expected stopped phase, got %s", s.Phase())
	}
}

func TestStopsExactlyAtPthNonImprovement(t *testing.T) {
	for patience := 1; patience <= 5; patience++ {
		values := []float64{1.0}
		for i := 0; i < patience; i++ {
			values = append(values, 0.9)
		}
		s, _ := newTestStopper(t, testConfig(2, patience, 0, Maximize), values...)

		for i := range values {
			epoch := 2 * (i + 1)
			stop := mustStop(t, s, epoch)
			wantStop := i == patience
			if stop != wantStop {
				t.Fatalf("patience %d: evaluation %d stop = %v, want %v", patience, i, stop, wantStop)
			}
		}
	}
}

func TestStoppedIsTerminal(t *testing.T) {
	s, ev := newTestStopper(t, testConfig(1, 1, 0, Minimize), 1.0, 2.0, 0.1)
	mustStop(t, s, 1)
	if !mustStop(t, s, 2) {
		t.Fatal("expected stop at epoch 2")
	}
	frozen := s.Summary()

	for _, epoch := range []int{3, 4, 100, 1} {
		if !mustStop(t, s, epoch) {
			t.Fatalf("stopper resumed at epoch %d", epoch)
		}
	}
	if len(ev.epochs) != 2 {
		t.Fatalf("evaluator called after stop: %v", ev.epochs)
	}
	if diff := cmp.Diff(frozen, s.Summary()); diff != "" {
		t.Fatalf("summary mutated after stop:\n%s", diff)
	}
}

func TestBestEpochTracksFirstBest(t *testing.T) {
	s, _ := newTestStopper(t, testConfig(10, 10, 0, Maximize), 0.2, 0.4, 0.4, 0.3)
	for epoch := 10; epoch <= 40; epoch += 10 {
		mustStop(t, s, epoch)
	}
	best, ok := s.BestEpoch()
	if !ok || best != 20 {
		t.Fatalf("expected best epoch 20, got %d (%v)", best, ok)
	}
	sum := s.Summary()
	if sum.BestMetric != 0.4 {
		t.Errorf("expected best metric 0.4, got %v", sum.BestMetric)
	}
	if diff := cmp.Diff([]float64{0.2, 0.4, 0.4, 0.3}, sum.Results); diff != "" {
		t.Errorf("results mismatch:\n%s", diff)
	}
}

// #endregion patience-tests

// #region evaluation-error-tests
func TestEvaluatorFailureLeavesStateUntouched(t *testing.T) {
	ev := &seriesEvaluator{err: errors.New("validation loader crashed")}
	s, err := NewEarlyStopper(testConfig(1, 2, 0, Maximize), ev, WithLogger(testr.New(t)))
	if err != nil {
		t.Fatalf("NewEarlyStopper: %v", err)
	}
	before := s.Summary()

	stop, err := s.ShouldStop(context.Background(), 1)
	if !errors.Is(err, ErrEvaluationUnavailable) {
		t.Fatalf("expected ErrEvaluationUnavailable, got %v", err)
	}
	if stop {
		t.Fatal("failed evaluation must not stop")
	}
	if diff := cmp.Diff(before, s.Summary()); diff != "" {
		t.Fatalf("summary mutated by failed evaluation:\n%s", diff)
	}

	// Retrying the same epoch evaluates again once the source recovers.
	ev.err = nil
	ev.values = []float64{0.7}
	if mustStop(t, s, 1) {
		t.Fatal("unexpected stop")
	}
	if len(s.Summary().Results) != 1 {
		t.Fatalf("expected 1 result after retry, got %v", s.Summary().Results)
	}
}

func TestNonFiniteValueIsUnavailable(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		s, _ := newTestStopper(t, testConfig(1, 2, 0, Maximize), v)
		_, err := s.ShouldStop(context.Background(), 1)
		if !errors.Is(err, ErrEvaluationUnavailable) {
			t.Fatalf("value %v: expected ErrEvaluationUnavailable, got %v", v, err)
		}
		if s.Phase() != PhaseFresh {
			t.Fatalf("value %v: expected fresh phase, got %s", v, s.Phase())
		}
	}
}

// #endregion evaluation-error-tests

// #region epoch-order-tests
func TestDuplicateEpochIsIdempotent(t *testing.T) {
	s, ev := newTestStopper(t, testConfig(2, 2, 0, Maximize), 0.5, 0.6)
	mustStop(t, s, 2)
	mustStop(t, s, 2)
	mustStop(t, s, 2)

	if len(ev.epochs) != 1 {
		t.Fatalf("expected one evaluation, got %v", ev.epochs)
	}
	if len(s.Summary().Results) != 1 {
		t.Fatalf("expected one result, got %v", s.Summary().Results)
	}
	if last, _ := s.LastEvaluatedEpoch(); last != 2 {
		t.Fatalf("expected last evaluated epoch 2, got %d", last)
	}
}

func TestEarlierEpochIsRejected(t *testing.T) {
	s, _ := newTestStopper(t, testConfig(2, 2, 0, Maximize), 0.5, 0.6)
	mustStop(t, s, 4)

	_, err := s.ShouldStop(context.Background(), 2)
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
	if len(s.Summary().Results) != 1 {
		t.Fatalf("rejected epoch mutated results: %v", s.Summary().Results)
	}
}

// #endregion epoch-order-tests

// #region callback-tests
func TestCallbacksFireInOrder(t *testing.T) {
	var events []string
	record := func(kind string) Callback {
		return func(s *EarlyStopper, value float64, epoch int) error {
			events = append(events, kind)
			return nil
		}
	}
	failing := func(*EarlyStopper, float64, int) error { return errors.New("tracker offline") }

	ev := &seriesEvaluator{values: []float64{0.5, 0.4}}
	s, err := NewEarlyStopper(testConfig(1, 1, 0, Maximize), ev,
		WithLogger(testr.New(t)),
		WithCallbacks(Callbacks{
			OnResult:      []Callback{record("result"), failing},
			OnImprovement: []Callback{record("improvement")},
		}),
		WithCallbacks(Callbacks{OnStopped: []Callback{record("stopped")}}),
	)
	if err != nil {
		t.Fatalf("NewEarlyStopper: %v", err)
	}

	mustStop(t, s, 1)
	if !mustStop(t, s, 2) {
		t.Fatal("expected stop at epoch 2")
	}

	want := []string{"result", "improvement", "result", "stopped"}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("callback order mismatch (-want +got):\n%s", diff)
	}
}

// #endregion callback-tests

// #region summary-tests
func TestSummaryIsACopy(t *testing.T) {
	s, _ := newTestStopper(t, testConfig(1, 3, 0, Maximize), 0.5)
	mustStop(t, s, 1)

	sum := s.Summary()
	sum.Results[0] = 42
	*sum.BestEpoch = 99
	dict := s.SummaryDict()
	dict["stopped"] = true
	dict["results"].([]float64)[0] = 42

	fresh := s.Summary()
	if fresh.Results[0] != 0.5 || *fresh.BestEpoch != 1 || fresh.Stopped {
		t.Fatalf("internal state leaked through accessors: %+v", fresh)
	}
}

func TestSummaryDictKeys(t *testing.T) {
	s, _ := newTestStopper(t, testConfig(1, 3, 0.1, Minimize), 0.5)
	mustStop(t, s, 1)

	dict := s.SummaryDict()
	for _, key := range []string{
		"frequency", "patience", "remaining_patience", "relative_delta", "metric",
		"larger_is_better", "results", "stopped", "best_epoch", "best_metric",
	} {
		if _, ok := dict[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if dict["larger_is_better"] != false || dict["best_epoch"] != 1 {
		t.Errorf("unexpected dict %v", dict)
	}
}

// #endregion summary-tests

// #region nop-tests
func TestNopStopper(t *testing.T) {
	var s Stopper = NopStopper{}
	for _, epoch := range []int{0, 1, 100} {
		if s.ShouldEvaluate(epoch) {
			t.Errorf("ShouldEvaluate(%d) = true", epoch)
		}
		if mustStop(t, s, epoch) {
			t.Errorf("ShouldStop(%d) = true", epoch)
		}
		if d := s.SummaryDict(); d == nil || len(d) != 0 {
			t.Errorf("expected empty mapping, got %v", d)
		}
	}
}

// #endregion nop-tests
