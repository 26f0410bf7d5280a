package policy

import "github.com/danielpatrickdp/stopper/internal/summary"

// #region action
// Action names the outcome of applying one observation.
type Action string

const (
	ActionBaseline  Action = "baseline"  // first observation
	ActionImproved  Action = "improved"  // beat the best metric by the relative delta
	ActionNoImprove Action = "no_improvement"
	ActionExhausted Action = "exhausted" // patience reached zero on this observation
)

// #endregion action

// #region decision
// Decision is the output of Apply.
type Decision struct {
	Summary   summary.Summary // updated copy; the input is never mutated
	Action    Action
	Improved  bool
	Exhausted bool
	Threshold float64 // value the observation had to beat; zero for a baseline
	Reason    string
}

// #endregion decision
