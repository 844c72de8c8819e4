package bigquery

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/designdrop-backend/pkg/config"
)

func TestTarget(t *testing.T) {
	dataset, table, err := target(config.BigQueryConfig{Dataset: " designdrop ", MarketplaceEventsTable: " marketplace_events "})
	require.NoError(t, err)
	assert.Equal(t, "designdrop", dataset)
	assert.Equal(t, "marketplace_events", table)

	_, _, err = target(config.BigQueryConfig{MarketplaceEventsTable: "events"})
	assert.ErrorIs(t, err, errDatasetRequired)
	_, _, err = target(config.BigQueryConfig{Dataset: "designdrop", MarketplaceEventsTable: "  "})
	assert.ErrorIs(t, err, errTableNameRequired)
}

func TestClientOptions(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/creds"}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{}))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.BigQueryConfig{Dataset: "d", MarketplaceEventsTable: "t"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(context.Background()), errClientNotInitialized)
	assert.ErrorIs(t, c.InsertEvents(context.Background(), []any{1}), errClientNotInitialized)
	assert.NoError(t, c.Close())
}

func TestMissingDistinguishesNotFound(t *testing.T) {
	notFound := fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})
	assert.EqualError(t, missing("table", "events", notFound), `table "events" does not exist`)

	forbidden := &googleapi.Error{Code: http.StatusForbidden}
	err := missing("dataset", "designdrop", forbidden)
	assert.ErrorIs(t, err, forbidden)
	assert.False(t, isNotFound(forbidden))
}
