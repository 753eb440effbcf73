package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/controlplane/pkg/audit"
)

func TestSlogStorage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := audit.NewSlogStorage(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, s.StoreBatch(context.Background(), []audit.Event{
		{
			ID:         "e1",
			UserID:     "admin",
			Action:     "feature_flag.delete",
			Resource:   "feature_flag",
			ResourceID: "beta_features",
			Result:     audit.ResultSuccess,
			CreatedAt:  time.Now(),
		},
		{
			ID:        "e2",
			Action:    "circuit_breaker.reset",
			Result:    audit.ResultError,
			Error:     "denied",
			CreatedAt: time.Now(),
		},
	}))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))

	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "feature_flag.delete", first["action"])
	assert.Equal(t, "beta_features", first["resource_id"])
	assert.Equal(t, "admin", first["user_id"])

	assert.Equal(t, "WARN", second["level"])
	assert.Equal(t, "denied", second["error"])
	assert.NotContains(t, second, "user_id")
}
