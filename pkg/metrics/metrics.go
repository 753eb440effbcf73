package metrics

// Labels is a set of metric label name/value pairs.
type Labels map[string]string

// Sink receives counter increments and histogram observations.
type Sink interface {
	IncrementCounter(name string, labels Labels)
	RecordHistogram(name string, value float64, labels Labels)
}

// Noop is a Sink that discards everything.
type Noop struct{}

func (Noop) IncrementCounter(string, Labels)         {}
func (Noop) RecordHistogram(string, float64, Labels) {}
