package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodlens/foodlens-go/internal/conf"
)

func testSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Main.Name = "FoodLens"
	settings.Realtime.MQTT.Broker = "tcp://localhost:1883"
	settings.Realtime.MQTT.Topic = "foodlens/predictions"
	return settings
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 5*time.Second, config.ReconnectCooldown)
	assert.Equal(t, time.Second, config.ReconnectDelay)
	assert.Equal(t, 30*time.Second, config.ConnectTimeout)
	assert.Equal(t, 10*time.Second, config.PublishTimeout)
}

func TestNewClientRequiresBroker(t *testing.T) {
	settings := testSettings()
	settings.Realtime.MQTT.Broker = ""
	_, err := NewClient(settings, nil)
	assert.Error(t, err)
}

func TestNewClientCarriesSettings(t *testing.T) {
	c, err := NewClient(testSettings(), nil)
	require.NoError(t, err)

	impl, ok := c.(*client)
	require.True(t, ok)
	assert.Equal(t, "tcp://localhost:1883", impl.config.Broker)
	assert.Equal(t, "FoodLens", impl.config.ClientID)
	assert.Equal(t, "foodlens/predictions", impl.config.Topic)
}

func TestPublishWithoutConnection(t *testing.T) {
	c, err := NewClient(testSettings(), nil)
	require.NoError(t, err)

	err = c.Publish(context.Background(), "foodlens/predictions", "{}")
	assert.Error(t, err)
	assert.False(t, c.IsConnected())
}

func TestConnectCooldown(t *testing.T) {
	c, err := NewClient(testSettings(), nil)
	require.NoError(t, err)

	impl := c.(*client)
	impl.lastConnAttempt = time.Now()

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection attempt too recent")
}

func TestConnectRejectsInvalidBrokerURL(t *testing.T) {
	settings := testSettings()
	settings.Realtime.MQTT.Broker = "://not-a-url"
	c, err := NewClient(settings, nil)
	require.NoError(t, err)

	err = c.Connect(context.Background())
	assert.Error(t, err)
}
