package replay

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/stopper/internal/tracker"
)

func TestFixtureFromHistory_FillsGaps(t *testing.T) {
	cfg := FixtureConfig{Frequency: 2, Patience: 2, RelativeDelta: 0.01, Metric: "hits_at_10", Direction: "maximize"}
	points := []tracker.Point{{Step: 2, Value: 0.2}, {Step: 4, Value: 0.25}, {Step: 6, Value: 0.252}, {Step: 10, Value: 0.24}}
	stop, best := 10, 4

	f, err := FixtureFromHistory(cfg, points, &stop, &best)
	if err != nil {
		t.Fatalf("FixtureFromHistory: %v", err)
	}
	if len(f.Values) != 5 || f.Values[3] != nil || *f.Values[4] != 0.24 {
		t.Fatalf("unexpected values %v", f.Values)
	}

	// The recorded run replays to the outcome it was exported with.
	results, sum, err := Replay(context.Background(), f, testr.New(t))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if m := Check(f, results, sum); len(m) != 0 {
		t.Fatalf("exported fixture does not replay: %v", m)
	}
}

func TestFixtureFromHistory_Rejects(t *testing.T) {
	cfg := FixtureConfig{Frequency: 2, Patience: 1, Metric: "mrr"}
	if _, err := FixtureFromHistory(cfg, nil, nil, nil); err == nil {
		t.Error("expected error for empty history")
	}
	if _, err := FixtureFromHistory(cfg, []tracker.Point{{Step: 3, Value: 1}}, nil, nil); err == nil {
		t.Error("expected error for off-cadence step")
	}
	cfg.Frequency = 0
	if _, err := FixtureFromHistory(cfg, []tracker.Point{{Step: 3, Value: 1}}, nil, nil); err == nil {
		t.Error("expected error for zero frequency")
	}
}

func TestSaveFixture_RoundTrip(t *testing.T) {
	src, err := LoadFixture(filepath.Join("testdata", "patience.yaml"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	dir := t.TempDir()
	for _, name := range []string{"out.yaml", "out.json"} {
		path := filepath.Join(dir, name)
		if err := SaveFixture(path, src); err != nil {
			t.Fatalf("SaveFixture(%s): %v", name, err)
		}
		got, err := LoadFixture(path)
		if err != nil {
			t.Fatalf("LoadFixture(%s): %v", name, err)
		}
		if diff := cmp.Diff(src, got); diff != "" {
			t.Fatalf("%s round trip mismatch (-want +got):\n%s", name, diff)
		}
	}
}
