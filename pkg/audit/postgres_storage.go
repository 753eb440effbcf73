package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PostgresStorage.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const (
	eventColumns = "id, user_id, action, resource, resource_id, result, error, request_id, ip, metadata, created_at"

	insertEventSQL = "INSERT INTO audit_logs (" + eventColumns + ") " +
		"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) ON CONFLICT (id) DO NOTHING"
)

// PostgresStorage stores events in the audit_logs table created by Migrations.
type PostgresStorage struct {
	db DB
}

// NewPostgresStorage creates a storage on top of db, usually a *pgxpool.Pool.
func NewPostgresStorage(db DB) *PostgresStorage {
	if db == nil {
		panic("audit: db cannot be nil")
	}
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) Store(ctx context.Context, event Event) error {
	args, err := insertArgs(event)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, insertEventSQL, args...); err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

// StoreBatch inserts events in one implicit transaction.
func (s *PostgresStorage) StoreBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		args, err := insertArgs(e)
		if err != nil {
			return err
		}
		batch.Queue(insertEventSQL, args...)
	}

	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

func (s *PostgresStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	where, args := whereClause(criteria)

	var sb strings.Builder
	sb.WriteString("SELECT " + eventColumns + " FROM audit_logs")
	sb.WriteString(where)
	sb.WriteString(" ORDER BY created_at DESC, id")
	if criteria.Limit > 0 {
		args = append(args, criteria.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if criteria.Offset > 0 {
		args = append(args, criteria.Offset)
		sb.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}

	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}
	return events, nil
}

func (s *PostgresStorage) Count(ctx context.Context, criteria Criteria) (int64, error) {
	where, args := whereClause(criteria)

	var n int64
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM audit_logs"+where, args...).Scan(&n); err != nil {
		return 0, errors.Join(ErrStorageNotAvailable, err)
	}
	return n, nil
}

func insertArgs(e Event) ([]any, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	var metadata []byte
	if len(e.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(e.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %w", ErrEventValidation, err)
		}
	}

	return []any{
		e.ID, e.UserID, e.Action, e.Resource, e.ResourceID, string(e.Result),
		e.Error, e.RequestID, e.IP, metadata, e.CreatedAt,
	}, nil
}

// whereClause renders the non-zero criteria fields as positional predicates.
func whereClause(c Criteria) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, expr+" $"+strconv.Itoa(len(args)))
	}

	if c.UserID != "" {
		add("user_id =", c.UserID)
	}
	if c.Action != "" {
		add("action =", c.Action)
	}
	if c.Resource != "" {
		add("resource =", c.Resource)
	}
	if c.ResourceID != "" {
		add("resource_id =", c.ResourceID)
	}
	if c.Result != "" {
		add("result =", string(c.Result))
	}
	if !c.StartTime.IsZero() {
		add("created_at >=", c.StartTime)
	}
	if !c.EndTime.IsZero() {
		add("created_at <", c.EndTime)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanEvent(row pgx.CollectableRow) (Event, error) {
	var (
		e        Event
		result   string
		metadata []byte
	)
	if err := row.Scan(
		&e.ID, &e.UserID, &e.Action, &e.Resource, &e.ResourceID, &result,
		&e.Error, &e.RequestID, &e.IP, &metadata, &e.CreatedAt,
	); err != nil {
		return Event{}, err
	}
	e.Result = Result(result)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return Event{}, err
		}
	}
	return e, nil
}
