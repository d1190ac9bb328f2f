package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerSchedule(t *testing.T) {
	tests := []struct {
		override string
		cadence  string
		want     string
	}{
		{"0 */5 * * * *", "1h", "0 */5 * * * *"},
		{"", "", defaultTrigger},
		{"", "always", defaultTrigger},
		{"", "15m", "@every 15m0s"},
		{"", "@hourly", "@hourly"},
		{"", "0 35 9 * * MON-FRI", "0 35 9 * * MON-FRI"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, triggerSchedule(tt.override, tt.cadence), "override=%q cadence=%q", tt.override, tt.cadence)
	}
}

func TestParsePrices(t *testing.T) {
	prices, err := parsePrices([]string{"AAPL=190.5", " MSFT = 410 "})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"AAPL": 190.5, "MSFT": 410}, prices)

	_, err = parsePrices([]string{"AAPL"})
	assert.Error(t, err)
	_, err = parsePrices([]string{"AAPL=-1"})
	assert.Error(t, err)
}
