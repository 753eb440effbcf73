package enterprise

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/controlplane/core"
	"github.com/dmitrymomot/controlplane/handler"
	"github.com/dmitrymomot/controlplane/pkg/audit"
	"github.com/dmitrymomot/controlplane/pkg/feature"
	"github.com/dmitrymomot/controlplane/pkg/logger"
)

type ListFlagsRequest struct {
	Tags []string `query:"tag" json:"-"`
}

type FlagRequest struct {
	Name string `path:"name" json:"-"`
}

// PutFlagRequest replaces a flag. The name comes from the path; a "name" in
// the body must match it.
type PutFlagRequest struct {
	Name              string              `path:"name" json:"-"`
	BodyName          string              `json:"name"`
	Description       string              `json:"description"`
	Enabled           bool                `json:"enabled"`
	RolloutPercentage float64             `json:"rollout_percentage"`
	Conditions        map[string][]string `json:"conditions"`
	Tags              []string            `json:"tags"`
}

type RolloutRequest struct {
	Name       string   `path:"name" json:"-"`
	Percentage *float64 `json:"percentage"`
}

// FlagCheck is the result of evaluating a flag for the caller.
type FlagCheck struct {
	FlagName string `json:"flag_name"`
	Enabled  bool   `json:"enabled"`
	UserID   string `json:"user_id"`
	UserTier string `json:"user_tier"`
}

// FeatureSet lists every flag's decision for the caller.
type FeatureSet struct {
	UserID   string          `json:"user_id"`
	Features map[string]bool `json:"features"`
}

func (s *Service) listFlags(ctx handler.Context, req ListFlagsRequest) core.Response {
	flags := s.guards.Flags.ListFlags(ctx, req.Tags...)
	if flags == nil {
		flags = []*feature.Flag{}
	}
	s.record(ctx, ActionListFlags,
		audit.WithResource("feature_flag", ""),
		audit.WithMetadata("count", len(flags)),
	)
	return core.JSON("feature_flags", flags, map[string]any{"total": len(flags)})
}

func (s *Service) getFlag(ctx handler.Context, req FlagRequest) core.Response {
	flag, err := s.guards.Flags.GetFlag(ctx, req.Name)
	if err != nil {
		return core.JSONError(err)
	}
	return core.JSON("feature_flag", flag, nil)
}

func (s *Service) putFlag(ctx handler.Context, req PutFlagRequest) core.Response {
	if req.BodyName != "" && req.BodyName != req.Name {
		verr := core.NewValidationError()
		verr.Add("name", "must match the flag name in the path")
		return core.JSONError(verr)
	}

	err := s.guards.Flags.SetFlag(ctx, &feature.Flag{
		Name:              req.Name,
		Description:       req.Description,
		Enabled:           req.Enabled,
		RolloutPercentage: req.RolloutPercentage,
		Conditions:        req.Conditions,
		Tags:              req.Tags,
	})
	if err != nil {
		return core.JSONError(err)
	}

	flag, err := s.guards.Flags.GetFlag(ctx, req.Name)
	if err != nil {
		return core.JSONError(err)
	}
	return core.JSON("feature_flag_saved", flag, nil)
}

func (s *Service) deleteFlag(ctx handler.Context, req FlagRequest) core.Response {
	if err := s.guards.Flags.DeleteFlag(ctx, req.Name); err != nil {
		return core.JSONError(err)
	}
	return core.Empty()
}

func (s *Service) toggleFlag(ctx handler.Context, req FlagRequest) core.Response {
	flag, err := s.guards.Flags.ToggleFlag(ctx, req.Name)
	if err != nil {
		return core.JSONError(err)
	}
	s.log.InfoContext(ctx, "feature flag toggled",
		logger.Flag(flag.Name),
		slog.Bool("enabled", flag.Enabled),
	)
	return core.JSON("feature_flag_toggled", flag, nil)
}

func (s *Service) setRollout(ctx handler.Context, req RolloutRequest) core.Response {
	if req.Percentage == nil {
		verr := core.NewValidationError()
		verr.Add("percentage", "is required")
		return core.JSONError(verr)
	}

	flag, err := s.guards.Flags.SetRollout(ctx, req.Name, *req.Percentage)
	if err != nil {
		return core.JSONError(err)
	}
	return core.JSON("feature_flag_rollout_set", flag, nil)
}

// checkFlag evaluates a flag for the caller. Unknown flags are reported as
// disabled, never as 404.
func (s *Service) checkFlag(ctx handler.Context, req FlagRequest) core.Response {
	id, _ := IdentityFromContext(ctx)
	enabled := s.guards.Flags.IsEnabled(ctx, req.Name,
		feature.ForUser(id.UserID),
		feature.WithAttributes(feature.Attributes{AttrUserTier: id.Tier()}),
	)
	return core.JSON("feature_flag_check", FlagCheck{
		FlagName: req.Name,
		Enabled:  enabled,
		UserID:   id.UserID,
		UserTier: id.Tier(),
	}, nil)
}

func (s *Service) features(ctx handler.Context, _ struct{}) core.Response {
	id, _ := IdentityFromContext(ctx)
	attrs := feature.Attributes{AttrUserTier: id.Tier()}

	flags := s.guards.Flags.ListFlags(ctx)
	set := FeatureSet{UserID: id.UserID, Features: make(map[string]bool, len(flags))}
	for _, f := range flags {
		set.Features[f.Name] = s.guards.Flags.IsEnabled(ctx, f.Name,
			feature.ForUser(id.UserID),
			feature.WithAttributes(attrs),
		)
	}
	return core.JSON("features", set, map[string]any{"evaluated_at": time.Now().UTC()})
}
