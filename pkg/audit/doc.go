// Package audit records administrative actions, such as feature flag
// changes or breaker resets, and serves the resulting trail.
//
// A Logger builds an Event from the action name, event options and values
// pulled from the request context through extractors, validates it and
// hands it to a Storage. Storages shipped with the package:
//
//   - MemoryStorage keeps events in process memory.
//   - SlogStorage writes each event as a structured log record.
//   - PostgresStorage inserts into the audit_logs table; its schema is
//     available as goose migrations through Migrations.
//
// Any BatchStorage can be wrapped in an AsyncWriter, which queues events
// in a bounded buffer and writes them in batches from a background
// goroutine. Enqueueing never blocks the caller: a full buffer yields
// ErrBufferFull and failed batches are logged, so audit trouble never
// fails the audited operation.
//
// # Usage
//
//	storage := audit.NewPostgresStorage(pool)
//	writer := audit.NewAsyncWriter(storage, opts, audit.WithAsyncLogger(log))
//	defer writer.Close(ctx)
//
//	auditLog := audit.NewLogger(writer,
//		audit.WithRequestIDExtractor(requestid.FromContext),
//		audit.WithIPExtractor(clientip.FromContext),
//	)
//
//	_ = auditLog.Log(ctx, "feature_flag.toggle",
//		audit.WithResource("feature_flag", "beta_features"),
//		audit.WithMetadata("enabled", true),
//	)
//
//	events, err := audit.NewReader(storage).Find(ctx, audit.Criteria{
//		UserID: "user-123",
//		Limit:  50,
//	})
package audit
