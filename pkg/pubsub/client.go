package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/designdrop-backend/pkg/config"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
)

// Client wraps the Pub/Sub v2 client with the marketplace's topic and
// subscription names.
type Client struct {
	sdk   *pubsub.Client
	names names
	cfg   config.PubSubConfig
}

// names expands short topic and subscription IDs into resource names.
type names struct {
	project string
}

func (n names) expand(kind, id string) string {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return ""
	case strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/"):
		return id
	case strings.TrimSpace(n.project) == "":
		return ""
	}
	return "projects/" + strings.TrimSpace(n.project) + "/" + kind + "/" + id
}

func (n names) topic(id string) string        { return n.expand("topics", id) }
func (n names) subscription(id string) string { return n.expand("subscriptions", id) }

// NewClient dials Pub/Sub and fails fast when a configured topic or
// subscription is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errors.New("gcp project id is required")
	}
	if strings.TrimSpace(cfg.NotificationSubscription) == "" {
		return nil, errors.New("pubsub notification subscription is required")
	}

	sdk, err := pubsub.NewClient(ctx, gcp.ProjectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{sdk: sdk, names: names{project: gcp.ProjectID}, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = sdk.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "gcp_project", gcp.ProjectID), "pubsub client ready")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// resource is one topic or subscription the services depend on.
type resource struct {
	kind string
	name string
}

// resources lists every configured topic and subscription, skipping blanks.
func resources(cfg config.PubSubConfig) []resource {
	candidates := []resource{
		{"topic", cfg.DesignsTopic},
		{"topic", cfg.OrdersTopic},
		{"topic", cfg.NotificationTopic},
		{"topic", cfg.AnalyticsTopic},
		{"subscription", cfg.NotificationSubscription},
		{"subscription", cfg.AnalyticsSubscription},
	}
	out := make([]resource, 0, len(candidates))
	for _, r := range candidates {
		if r.name = strings.TrimSpace(r.name); r.name != "" {
			out = append(out, r)
		}
	}
	return out
}

func (c *Client) lookup(ctx context.Context, r resource) error {
	var err error
	switch r.kind {
	case "topic":
		_, err = c.sdk.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.names.topic(r.name)})
	default:
		_, err = c.sdk.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.names.subscription(r.name)})
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q does not exist", r.kind, r.name)
	}
	if err != nil {
		return fmt.Errorf("checking %s %q: %w", r.kind, r.name, err)
	}
	return nil
}

// Ping checks that every configured topic and subscription exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.sdk == nil {
		return errors.New("pubsub client not initialized")
	}
	for _, r := range resources(c.cfg) {
		if err := c.lookup(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Subscription accepts a subscription ID or a full resource name.
func (c *Client) Subscription(id string) *pubsub.Subscriber {
	if c == nil || c.sdk == nil {
		return nil
	}
	name := c.names.subscription(id)
	if name == "" {
		return nil
	}
	return c.sdk.Subscriber(name)
}

func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.NotificationSubscription)
}

// AnalyticsSubscription is nil unless the BigQuery sink subscription is set.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher accepts a topic ID or a full resource name.
func (c *Client) Publisher(id string) *pubsub.Publisher {
	if c == nil || c.sdk == nil {
		return nil
	}
	name := c.names.topic(id)
	if name == "" {
		return nil
	}
	return c.sdk.Publisher(name)
}

func (c *Client) Close() error {
	if c == nil || c.sdk == nil {
		return nil
	}
	return c.sdk.Close()
}
