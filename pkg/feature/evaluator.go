package feature

import (
	"hash/fnv"
	"math/rand/v2"
	"slices"
)

// Evaluator decides whether a flag is on for one caller. It holds no state
// besides the random source used for anonymous callers.
type Evaluator struct {
	random func() float64
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithRandom replaces the uniform [0,1) source used for anonymous rollout.
func WithRandom(fn func() float64) EvaluatorOption {
	return func(e *Evaluator) {
		if fn != nil {
			e.random = fn
		}
	}
}

// NewEvaluator creates an evaluator backed by math/rand/v2.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{random: rand.Float64}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate reports whether flag is enabled for userID with attrs.
//
// A disabled or nil flag is off. A flag with conditions is off unless attrs
// carries, for every condition attribute, one of its allowed values; nil
// attrs never match. Finally the rollout percentage applies: identified
// users land in a stable bucket, anonymous callers are drawn at random on
// every call.
func (e *Evaluator) Evaluate(flag *Flag, userID string, attrs Attributes) bool {
	if flag == nil || !flag.Enabled {
		return false
	}
	if !matchConditions(flag.Conditions, attrs) {
		return false
	}
	return e.inRollout(flag.RolloutPercentage, userID)
}

func (e *Evaluator) inRollout(percentage float64, userID string) bool {
	if percentage >= 100 {
		return true
	}
	if userID != "" {
		return float64(Bucket(userID)) < percentage
	}
	return e.random()*100 < percentage
}

func matchConditions(conditions map[string][]string, attrs Attributes) bool {
	if len(conditions) == 0 {
		return true
	}
	if attrs == nil {
		return false
	}
	for attr, allowed := range conditions {
		v, ok := attrs[attr]
		if !ok || !slices.Contains(allowed, v) {
			return false
		}
	}
	return true
}

// Bucket maps a user id to a stable value in [0,100) using FNV-1a.
func Bucket(userID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return h.Sum32() % 100
}
