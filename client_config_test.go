package asock

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromMap(t *testing.T) {
	t.Run("should decode every option", func(t *testing.T) {
		var m map[string]any
		err := json.Unmarshal([]byte(`{
			"messageChannel": "sendmessage",
			"debug": true,
			"wsConfig": "aws-json",
			"restartMax": 5,
			"reconnectTime": 1500,
			"reconnectTimeMax": 30000,
			"randomizationFactor": 0.5,
			"reconnectOnClose": true,
			"unknown": "ignored"
		}`), &m)
		require.NoError(t, err)

		config, err := ConfigFromMap(m)
		require.NoError(t, err)
		assert.Equal(t, "sendmessage", config.MessageChannel)
		assert.True(t, config.Debug)
		assert.Equal(t, "aws-json", config.Subprotocol)
		assert.Equal(t, uint32(5), config.RestartMax)
		require.NotNil(t, config.ReconnectTime)
		assert.Equal(t, 1500*time.Millisecond, *config.ReconnectTime)
		require.NotNil(t, config.ReconnectTimeMax)
		assert.Equal(t, 30*time.Second, *config.ReconnectTimeMax)
		assert.Equal(t, float32(0.5), config.RandomizationFactor)
		assert.Equal(t, ReconnectOnClose, config.ReconnectPolicy)
	})

	t.Run("should leave missing options unset", func(t *testing.T) {
		config, err := ConfigFromMap(map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, &ClientConfig{}, config)
	})

	t.Run("should accept a zero reconnect time", func(t *testing.T) {
		config, err := ConfigFromMap(map[string]any{"reconnectTime": 0})
		require.NoError(t, err)
		require.NotNil(t, config.ReconnectTime)
		assert.Equal(t, time.Duration(0), *config.ReconnectTime)
	})

	t.Run("should drop a non-string wsConfig", func(t *testing.T) {
		config, err := ConfigFromMap(map[string]any{"wsConfig": []string{"a", "b"}})
		require.NoError(t, err)
		assert.Empty(t, config.Subprotocol)

		config, err = ConfigFromMap(map[string]any{"wsConfig": 42})
		require.NoError(t, err)
		assert.Empty(t, config.Subprotocol)
	})

	t.Run("should reject invalid values", func(t *testing.T) {
		_, err := ConfigFromMap(map[string]any{"restartMax": -1})
		assert.Error(t, err)

		_, err = ConfigFromMap(map[string]any{"reconnectTime": -100})
		assert.Error(t, err)

		_, err = ConfigFromMap(map[string]any{"debug": "yes"})
		assert.Error(t, err)
	})
}

func TestConfigMap(t *testing.T) {
	t.Run("should render set options", func(t *testing.T) {
		reconnectTime := 2 * time.Second
		config := &ClientConfig{
			MessageChannel:  "sendmessage",
			Subprotocol:     "aws-json",
			RestartMax:      3,
			ReconnectTime:   &reconnectTime,
			ReconnectPolicy: ReconnectOnClose,
		}

		assert.Equal(t, map[string]any{
			"messageChannel":   "sendmessage",
			"debug":            false,
			"wsConfig":         "aws-json",
			"restartMax":       uint32(3),
			"reconnectTime":    uint64(2000),
			"reconnectOnClose": true,
		}, config.Map())
	})

	t.Run("should round trip through ConfigFromMap", func(t *testing.T) {
		reconnectTime := 250 * time.Millisecond
		reconnectTimeMax := 4 * time.Second
		config := &ClientConfig{
			Debug:               true,
			RestartMax:          7,
			ReconnectTime:       &reconnectTime,
			ReconnectTimeMax:    &reconnectTimeMax,
			RandomizationFactor: 0.25,
		}

		decoded, err := ConfigFromMap(config.Map())
		require.NoError(t, err)
		assert.Equal(t, config, decoded)
	})
}
