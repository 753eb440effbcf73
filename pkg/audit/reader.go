package audit

import "context"

// Reader serves audit trail queries.
type Reader struct {
	storage Querier
}

// NewReader creates a new audit reader
func NewReader(storage Querier) *Reader {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	return &Reader{storage: storage}
}

// Find retrieves audit events matching criteria, newest first.
func (r *Reader) Find(ctx context.Context, criteria Criteria) ([]Event, error) {
	if criteria.Limit < 0 || criteria.Offset < 0 {
		return nil, ErrInvalidCriteria
	}
	return r.storage.Query(ctx, criteria)
}

// Count returns the number of events matching criteria. Limit and Offset
// are ignored. Storages implementing Counter are asked directly; otherwise
// all matching events are loaded and counted.
func (r *Reader) Count(ctx context.Context, criteria Criteria) (int64, error) {
	criteria.Limit, criteria.Offset = 0, 0

	if counter, ok := r.storage.(Counter); ok {
		return counter.Count(ctx, criteria)
	}

	events, err := r.storage.Query(ctx, criteria)
	if err != nil {
		return 0, err
	}
	return int64(len(events)), nil
}
