package enterprise

import (
	"errors"

	"github.com/dmitrymomot/controlplane/core"
	"github.com/dmitrymomot/controlplane/handler"
	"github.com/dmitrymomot/controlplane/pkg/audit"
	"github.com/dmitrymomot/controlplane/pkg/metrics"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

var errNoReader = errors.Join(core.ErrNotImplemented, errors.New("audit trail is not configured"))

type AuditTrailRequest struct {
	UserID string `path:"id" json:"-"`
	Action string `query:"action" json:"-"`
	Limit  int    `query:"limit" json:"-"`
	Offset int    `query:"offset" json:"-"`
}

func (s *Service) auditTrail(ctx handler.Context, req AuditTrailRequest) core.Response {
	if s.reader == nil {
		return core.JSONError(errNoReader)
	}

	limit := req.Limit
	switch {
	case limit == 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}

	criteria := audit.Criteria{
		UserID: req.UserID,
		Action: req.Action,
		Limit:  limit,
		Offset: req.Offset,
	}

	events, err := s.reader.Find(ctx, criteria)
	if err != nil {
		if errors.Is(err, audit.ErrInvalidCriteria) {
			return core.JSONError(errors.Join(core.ErrBadRequest, err))
		}
		return core.JSONError(err)
	}
	total, err := s.reader.Count(ctx, criteria)
	if err != nil {
		return core.JSONError(err)
	}

	s.record(ctx, ActionViewAuditTrail,
		audit.WithResource("user", req.UserID),
		audit.WithMetadata("target_user", req.UserID),
	)
	s.metrics.IncrementCounter("audit_trail_requests_total", metrics.Labels{})

	if events == nil {
		events = []audit.Event{}
	}
	return core.JSON("audit_trail", events, map[string]any{
		"total":  total,
		"limit":  limit,
		"offset": req.Offset,
	})
}
