// Package feature gates behaviour per user with feature flags.
//
// A Flag is identified by name and carries an on/off switch, a rollout
// percentage and optional conditions mapping an attribute name to the set
// of values allowed to see the feature. Flags live in a Store; MemoryStore
// is the in-process implementation and hands out copies only.
//
// Evaluation is done by an Evaluator and is a pure function of the flag and
// the caller: disabled flags are off, conditions must all match the caller's
// Attributes (no attributes means no match), and the rollout percentage is
// applied last. Identified users are placed in a stable bucket in [0,100)
// derived from an FNV-1a hash of their id, so the same user gets the same
// answer on every call. Anonymous callers get a fresh random draw each time.
//
// The Engine ties a store and an evaluator together, reads user ids and
// attributes from the request context through extractors, emits a
// feature_flag_evaluations_total counter, and writes an audit event for
// every mutation.
//
// # Usage
//
//	store, err := feature.NewMemoryStore(feature.Defaults())
//	if err != nil {
//		return err
//	}
//	engine, err := feature.NewEngine(store,
//		feature.WithAuditLogger(auditLog),
//		feature.WithMetrics(sink),
//		feature.WithUserIDExtractor(userIDFromContext),
//	)
//	if err != nil {
//		return err
//	}
//
//	if engine.IsEnabled(ctx, "beta_features",
//		feature.WithAttributes(feature.Attributes{"user_tier": "premium"}),
//	) {
//		// new code path
//	}
//
// Flags can also be seeded from YAML with LoadFile or Decode.
//
// # Error Handling
//
// Evaluation never fails: unknown flags are simply off. Administrative
// operations return ErrFlagNotFound or ErrInvalidFlag, the latter joined
// with a description of the problem.
package feature
