package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSectionsForDelegatingRoleIsCoordinator(t *testing.T) {
	s := SectionsFor(RoleCaptain)
	assert.Equal(t, coordinatorSections, s)
	assert.Contains(t, s.Mission, "coordinate")
}

func TestSectionsForNonDelegatingRoleIsWorker(t *testing.T) {
	s := SectionsFor(RoleImpl)
	assert.Equal(t, workerSections, s)
	assert.NotEmpty(t, s.EndpointReference)
}

func TestEmbeddedSectionsParseWithoutPanicking(t *testing.T) {
	assert.NotPanics(t, func() {
		mustParseSections(coordinatorSectionsYAML)
		mustParseSections(workerSectionsYAML)
	})
}
