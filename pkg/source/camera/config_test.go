package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := Config{Width: 10, Height: 10, Quality: 0, Rotation: 45}
	err := bad.Validate()
	assert.ErrorContains(t, err, "device required")
	assert.ErrorContains(t, err, "resolution 10x10")
	assert.ErrorContains(t, err, "quality 0")
	assert.ErrorContains(t, err, "rotation 45")
}
