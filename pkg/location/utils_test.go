package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNmcliOutput(t *testing.T) {
	output := "AA\\:BB\\:CC\\:DD\\:EE\\:FF:80\n" +
		"not-a-mac:50\n" +
		"11\\:22\\:33\\:44\\:55\\:66:abc\n" +
		"01\\:23\\:45\\:67\\:89\\:AB:20\n"

	aps, err := parseNmcliOutput(output)
	require.NoError(t, err)
	require.Len(t, aps, 2)

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", aps[0].MACAddress)
	assert.InDelta(t, -60.0, aps[0].SignalStrength, 1e-9)
	assert.Equal(t, "01:23:45:67:89:AB", aps[1].MACAddress)
	assert.InDelta(t, -90.0, aps[1].SignalStrength, 1e-9)
}

func TestParseMmcliOutput(t *testing.T) {
	output := "modem.3gpp.imei : 490154203237518\n" +
		"modem.3gpp.mcc : 310\n" +
		"modem.3gpp.mnc : 260\n" +
		"modem.3gpp.lac : 2A3F\n" +
		"modem.3gpp.cid : 01B2C3\n"

	towers, err := parseMmcliOutput(output)
	require.NoError(t, err)
	require.Len(t, towers, 1)

	assert.Equal(t, 310, towers[0].MobileCountryCode)
	assert.Equal(t, 260, towers[0].MobileNetworkCode)
	assert.Equal(t, 0x2A3F, towers[0].LocationAreaCode)
	assert.Equal(t, 0x01B2C3, towers[0].CellID)
}

func TestParseMmcliOutput_Incomplete(t *testing.T) {
	_, err := parseMmcliOutput("modem.3gpp.mcc : 310\n")
	assert.EqualError(t, err, "incomplete cell tower data")
}

func TestIsValidMAC(t *testing.T) {
	assert.True(t, isValidMAC("00:14:22:01:23:45"))
	assert.True(t, isValidMAC("ff:ff:ff:ff:ff:ff"))
	assert.False(t, isValidMAC("00:14:22:01:23"))
	assert.False(t, isValidMAC("00:14:22:01:23:4G"))
	assert.False(t, isValidMAC("001:4:22:01:23:45"))
}
