package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/designdrop-backend/pkg/config"
)

func TestNamesExpand(t *testing.T) {
	n := names{project: "dd-prod"}

	assert.Equal(t, "projects/dd-prod/topics/dd-order-events", n.topic("dd-order-events"))
	assert.Equal(t, "projects/dd-prod/subscriptions/notify", n.subscription(" notify "))
	assert.Equal(t, "projects/other/topics/x", n.topic("projects/other/topics/x"))
	assert.Empty(t, n.topic(""))
	assert.Empty(t, names{}.topic("x"))
}

func TestResourcesSkipsBlankNames(t *testing.T) {
	got := resources(config.PubSubConfig{
		OrdersTopic:              "orders",
		AnalyticsTopic:           "  ",
		NotificationSubscription: "notify",
	})
	assert.Equal(t, []resource{{"topic", "orders"}, {"subscription", "notify"}}, got)
}

func TestSubscriberHandlesWithoutClient(t *testing.T) {
	c := &Client{names: names{project: "dd-prod"}, cfg: config.PubSubConfig{NotificationSubscription: "notify"}}
	assert.Nil(t, c.AnalyticsSubscription())
	assert.Nil(t, c.Publisher("orders"))
	assert.Nil(t, (*Client)(nil).NotificationSubscription())
	assert.Error(t, (*Client)(nil).Ping(context.Background()))
}

func TestClientOptionsPrefersInlineCredentials(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: "{}", ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{}))
}
