package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/bcperry/tak-server-mcp/internal/model"
	"github.com/bcperry/tak-server-mcp/internal/testutil"
)

func readRequest(uri string) mcplib.ReadResourceRequest {
	req := mcplib.ReadResourceRequest{}
	req.Params.URI = uri
	return req
}

func resourceJSON(t *testing.T, contents []mcplib.ResourceContents) map[string]any {
	t.Helper()
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok, "expected text resource contents")
	assert.Equal(t, "application/json", text.MIMEType)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestEntitiesCurrentResource(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()

	env.store.Upsert(testutil.Report("alpha", now, 1, 2))
	env.store.Upsert(testutil.Report("stale-one", now.Add(-30*time.Minute), 3, 4))

	contents, err := env.server.handleEntitiesCurrent(context.Background(), readRequest("tak://entities/current"))
	require.NoError(t, err)

	out := resourceJSON(t, contents)
	assert.Equal(t, float64(1), out["total"], "stale entities are excluded")
}

func TestAlertsRecentResource(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.fences.Add(model.Geofence{
		Name:     "zone",
		Shape:    model.Shape{Kind: model.ShapeCircle, RadiusM: 1000},
		Triggers: model.Triggers{OnEntry: true},
	})
	require.NoError(t, err)
	env.fences.Evaluate(testutil.Report("intruder", time.Now(), 0.001, 0))

	contents, err := env.server.handleAlertsRecent(context.Background(), readRequest("tak://alerts/recent"))
	require.NoError(t, err)
	assert.Equal(t, float64(1), resourceJSON(t, contents)["total"])
}

func TestEntityTrackResource(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()

	env.store.Upsert(testutil.Report("mover", now.Add(-2*time.Minute), 0, 0))
	env.store.Upsert(testutil.Report("mover", now.Add(-1*time.Minute), 0, 0.001))

	contents, err := env.server.handleEntityTrack(context.Background(), readRequest("tak://entity/mover/track"))
	require.NoError(t, err)

	out := resourceJSON(t, contents)
	assert.Equal(t, "mover", out["uid"])
	assert.Equal(t, float64(2), out["points"])

	_, err = env.server.handleEntityTrack(context.Background(), readRequest("tak://entity/ghost/track"))
	require.Error(t, err)

	_, err = env.server.handleEntityTrack(context.Background(), readRequest("bogus://uri"))
	require.Error(t, err)
}
