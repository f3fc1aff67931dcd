package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "memory", c.Store)
	assert.Equal(t, 5, c.Rules.MaxPlayers)
	assert.Equal(t, 5*time.Second, c.Rules.AFKGrace)
	assert.Equal(t, "wordjamboree_actions", c.Historian.Queue)
	assert.NoError(t, c.Rules.Game().Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("GAME_AFK_GRACE", "2s")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", c.Store)
	assert.Equal(t, "cache:6380", c.Redis.Addr)
	assert.Equal(t, 2*time.Second, c.Rules.Game().AFKGrace)
	assert.Equal(t, logrus.DebugLevel, c.Logger().GetLevel())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STORE_BACKEND", "etcd")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("GAME_TURN_TIME_MIN", "3")
	_, err = Load()
	assert.Error(t, err, "turn time below the minimum")
}
