package rendercore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWithDefaults(t *testing.T) {
	c := Config{}.withDefaults()

	assert.Equal(t, "render-core", c.AppName)
	assert.Equal(t, DefaultFramesInFlight, c.FramesInFlight)
	assert.Equal(t, DefaultImageCount, c.DesiredImageCount)
	assert.Equal(t, DefaultMaxInstances, c.MaxInstances)
	assert.NotNil(t, c.Logger)

	require.NoError(t, c.validate())
}

func TestConfigKeepsExplicitValues(t *testing.T) {
	c := Config{
		AppName:           "demo",
		FramesInFlight:    3,
		DesiredImageCount: 2,
		MaxInstances:      100,
	}.withDefaults()

	assert.Equal(t, "demo", c.AppName)
	assert.Equal(t, 3, c.FramesInFlight)
	assert.Equal(t, 2, c.DesiredImageCount)
	assert.Equal(t, 100, c.MaxInstances)
}

func TestConfigValidateRejectsNegatives(t *testing.T) {
	assert.Error(t, Config{FramesInFlight: -1, DesiredImageCount: 2, MaxInstances: 10}.validate())
	assert.Error(t, Config{FramesInFlight: 2, DesiredImageCount: -1, MaxInstances: 10}.validate())
	assert.Error(t, Config{FramesInFlight: 2, DesiredImageCount: 2, MaxInstances: -1}.validate())
}
