package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectRoleRecognizesPrefixesCaseInsensitively(t *testing.T) {
	assert.Equal(t, RoleGeneral, DetectRole("GENERAL: coordinate everything"))
	assert.Equal(t, RoleCaptain, DetectRole("captain: build feature X"))
	assert.Equal(t, RoleFix, DetectRole("FIX: broken test"))
	assert.Equal(t, RoleUnknown, DetectRole("just a worker"))
}

func TestCanDelegateOnlyDelegatingRoles(t *testing.T) {
	assert.True(t, CanDelegate(RoleGeneral))
	assert.True(t, CanDelegate(RoleColonel))
	assert.True(t, CanDelegate(RoleCaptain))
	assert.False(t, CanDelegate(RoleImpl))
	assert.False(t, CanDelegate(RoleUnknown))
}
