package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCriteria(t *testing.T) {
	fine := NewCriteria(true)
	assert.Equal(t, Criteria{Accuracy: AccuracyFine}, fine)
	assert.Equal(t, "fine", fine.Accuracy.String())

	coarse := NewCriteria(false)
	assert.Equal(t, Criteria{Accuracy: AccuracyCoarse}, coarse)
	assert.Equal(t, "coarse", coarse.Accuracy.String())
}

func TestParsePermission(t *testing.T) {
	p, err := ParsePermission(" Fine ")
	require.NoError(t, err)
	assert.Equal(t, PermissionFine, p)

	p, err = ParsePermission("coarse")
	require.NoError(t, err)
	assert.Equal(t, PermissionCoarse, p)

	_, err = ParsePermission("background")
	assert.EqualError(t, err, `unknown location permission "background"`)
}

func TestDistance(t *testing.T) {
	paris := Position{Latitude: 48.8566, Longitude: 2.3522}
	london := Position{Latitude: 51.5074, Longitude: -0.1278}

	assert.InDelta(t, 343_500, Distance(paris, london), 1_000)
	assert.InDelta(t, 0, Distance(paris, paris), 1e-9)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "available", Available.String())
	assert.Equal(t, "temporarily_unavailable", TemporarilyUnavailable.String())
	assert.Equal(t, "out_of_service", OutOfService.String())
}
