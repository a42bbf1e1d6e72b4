package location

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHost_NoSources(t *testing.T) {
	var cfg HostConfig
	cfg.Network.Enabled = true // no API key
	cfg.GPS.Enabled = true     // no port

	h := NewSystemHost(cfg, &inlineDispatcher{}, zerolog.Nop())
	m, err := h.Manager()

	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.NoError(t, h.Close())
}

func TestSystemHost_ManagerIsCreatedOnce(t *testing.T) {
	var cfg HostConfig
	cfg.GPS.Enabled = true
	cfg.GPS.DevicePort = "/dev/ttyUSB0"
	cfg.GPS.BaudRate = 9600
	cfg.Manager.Permissions = []Permission{PermissionFine}

	h := NewSystemHost(cfg, &inlineDispatcher{}, zerolog.Nop())

	first, err := h.Manager()
	require.NoError(t, err)
	second, err := h.Manager()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, []string{SourceGPS}, first.Sources(false))
	assert.NoError(t, h.Close())
}
