//go:build amd64 && (linux || windows || darwin)

package sonic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonicSerializer(t *testing.T) {
	s := New(Config{SortMapKeys: true})

	data, err := s.Marshal(map[string]any{"data": map[string]any{"event": "ping"}, "action": "message"})
	require.NoError(t, err)
	assert.Equal(t, `{"action":"message","data":{"event":"ping"}}`, string(data))

	var f struct {
		Event string          `json:"event"`
		Body  json.RawMessage `json:"body"`
	}
	err = s.Unmarshal([]byte(`{"event":"chat","body":"hi"}`), &f)
	require.NoError(t, err)
	assert.Equal(t, "chat", f.Event)
	assert.Equal(t, `"hi"`, string(f.Body))
}
