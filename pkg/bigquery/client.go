package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/designdrop-backend/pkg/config"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// Client streams marketplace event rows into one BigQuery table.
type Client struct {
	sdk   *bigquery.Client
	table *bigquery.Table
}

// NewClient fails unless both the dataset and the events table exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID, tableID, err := target(cfg)
	if err != nil {
		return nil, err
	}
	sdk, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{sdk: sdk, table: sdk.Dataset(datasetID).Table(tableID)}
	if err := c.Ping(ctx); err != nil {
		_ = sdk.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"table":   tableID,
		}), "bigquery client initialized")
	}
	return c, nil
}

func target(cfg config.BigQueryConfig) (dataset, table string, err error) {
	dataset = strings.TrimSpace(cfg.Dataset)
	table = strings.TrimSpace(cfg.MarketplaceEventsTable)
	switch {
	case dataset == "":
		return "", "", errDatasetRequired
	case table == "":
		return "", "", errTableNameRequired
	}
	return dataset, table, nil
}

// clientOptions prefers inline credentials over a credentials file. With
// neither, the SDK falls back to application default credentials.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.table == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	dataset := c.sdk.Dataset(c.table.DatasetID)
	if _, err := dataset.Metadata(ctx); err != nil {
		return missing("dataset", c.table.DatasetID, err)
	}
	if _, err := c.table.Metadata(ctx); err != nil {
		return missing("table", c.table.TableID, err)
	}
	return nil
}

func missing(kind, name string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// InsertEvents streams rows. Rows implementing bigquery.ValueSaver pick
// their own insert IDs, which BigQuery uses for best-effort dedup.
func (c *Client) InsertEvents(ctx context.Context, rows []any) error {
	if c == nil || c.table == nil {
		return errClientNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	err := c.table.Inserter().Put(ctx, rows)
	var partial bigquery.PutMultiError
	if errors.As(err, &partial) {
		return fmt.Errorf("%d of %d rows rejected: %w", len(partial), len(rows), err)
	}
	return err
}

func (c *Client) Close() error {
	if c == nil || c.sdk == nil {
		return nil
	}
	return c.sdk.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
