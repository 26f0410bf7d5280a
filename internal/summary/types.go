package summary

// #region summary
// Summary is the complete decision state of an early stopper. It is the only
// durable representation of a stopper: a checkpoint stores it under the
// stopper_dict section and a stopper can be rebuilt from it alone.
type Summary struct {
	Frequency         int       `json:"frequency" yaml:"frequency"`
	Patience          int       `json:"patience" yaml:"patience"`
	RemainingPatience int       `json:"remaining_patience" yaml:"remaining_patience"`
	RelativeDelta     float64   `json:"relative_delta" yaml:"relative_delta"`
	Metric            string    `json:"metric" yaml:"metric"`
	LargerIsBetter    bool      `json:"larger_is_better" yaml:"larger_is_better"`
	Results           []float64 `json:"results" yaml:"results"`
	Stopped           bool      `json:"stopped" yaml:"stopped"`
	BestEpoch         *int      `json:"best_epoch" yaml:"best_epoch"` // nil until the first evaluation
	BestMetric        float64   `json:"best_metric" yaml:"best_metric"`
}

// #endregion summary

// #region keys
// Keys of the flat mapping returned by Summary.ToMap.
const (
	KeyFrequency         = "frequency"
	KeyPatience          = "patience"
	KeyRemainingPatience = "remaining_patience"
	KeyRelativeDelta     = "relative_delta"
	KeyMetric            = "metric"
	KeyLargerIsBetter    = "larger_is_better"
	KeyResults           = "results"
	KeyStopped           = "stopped"
	KeyBestEpoch         = "best_epoch"
	KeyBestMetric        = "best_metric"
)

// #endregion keys
