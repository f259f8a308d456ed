package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/storefront-orders/pkg/config"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
)

func TestTopicFor(t *testing.T) {
	cfg := config.PubSubConfig{OrdersTopic: "orders", PaymentsTopic: "payments"}
	assert.Equal(t, "orders", TopicFor(cfg, enums.AggregateOrder))
	assert.Equal(t, "orders", TopicFor(cfg, enums.AggregateParentOrder))
	assert.Equal(t, "payments", TopicFor(cfg, enums.AggregatePayment))
	assert.Equal(t, "payments", TopicFor(cfg, enums.AggregateRefund))

	cfg.PaymentsTopic = " "
	assert.Equal(t, "orders", TopicFor(cfg, enums.AggregateRefund))
}

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/shop/topics/orders", TopicResourceName("shop", "orders"))
	assert.Equal(t, "projects/other/topics/x", TopicResourceName("shop", "projects/other/topics/x"))
	assert.Empty(t, TopicResourceName("", "orders"))
	assert.Empty(t, TopicResourceName("shop", ""))
}

func TestTopicNamesDeduplicates(t *testing.T) {
	names := topicNames(config.PubSubConfig{OrdersTopic: "events", PaymentsTopic: "events"})
	assert.Equal(t, []string{"events"}, names)
	assert.Empty(t, topicNames(config.PubSubConfig{}))
}

func TestClientOptionsCredentialPrecedence(t *testing.T) {
	assert.Empty(t, clientOptions(config.GCPConfig{ProjectID: "shop"}))
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/sa.json"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/sa.json"}), 1)
}
