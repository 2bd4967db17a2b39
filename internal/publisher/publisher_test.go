package publisher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRelaySet_PrefersRequestedRelays(t *testing.T) {
	p := New([]string{"wss://fallback.one", "wss://fallback.two"}, zap.NewNop())

	requested := []string{"wss://requested.one"}
	assert.Equal(t, requested, p.RelaySet(requested))
}

func TestRelaySet_FallsBackWhenEmpty(t *testing.T) {
	fallback := []string{"wss://fallback.one", "wss://fallback.two"}
	p := New(fallback, zap.NewNop())

	assert.Equal(t, fallback, p.RelaySet(nil))
	assert.Equal(t, fallback, p.RelaySet([]string{}))
}
