package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC) // 월요일

func TestFixed(t *testing.T) {
	c := NewFixed(base)
	assert.Equal(t, base, c.Now())

	c.Advance(time.Minute)
	assert.Equal(t, base.Add(time.Minute), c.Now())

	c.Set(base)
	assert.Equal(t, base, c.Now())
}

func TestSystemIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, System{}.Now().Location())
}

func TestInterval(t *testing.T) {
	i := Interval{Every: 15 * time.Minute}

	tests := []struct {
		name string
		last time.Time
		now  time.Time
		want bool
	}{
		{"first cycle", time.Time{}, base, true},
		{"too early", base, base.Add(14 * time.Minute), false},
		{"exactly due", base, base.Add(15 * time.Minute), true},
		{"overdue", base, base.Add(time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, i.Due(tt.last, tt.now))
		})
	}
}

func TestCronCadence(t *testing.T) {
	c, err := NewCronCadence("0 0 * * * *") // 매 정시
	require.NoError(t, err)

	assert.True(t, c.Due(time.Time{}, base))
	assert.False(t, c.Due(base, base.Add(29*time.Minute)))
	assert.True(t, c.Due(base, base.Add(30*time.Minute)))
	assert.True(t, c.Due(base, base.Add(3*time.Hour)))

	// 5-field 표준 형식도 허용
	weekday, err := NewCronCadence("30 9 * * MON-FRI")
	require.NoError(t, err)
	assert.True(t, weekday.Due(base, base.Add(24*time.Hour)))

	_, err = NewCronCadence("not a cron")
	assert.Error(t, err)
}

func TestParseCadence(t *testing.T) {
	c, err := ParseCadence("")
	require.NoError(t, err)
	assert.IsType(t, Always{}, c)

	c, err = ParseCadence("15m")
	require.NoError(t, err)
	assert.Equal(t, Interval{Every: 15 * time.Minute}, c)

	c, err = ParseCadence("@hourly")
	require.NoError(t, err)
	assert.IsType(t, &CronCadence{}, c)

	_, err = ParseCadence("-5m")
	assert.Error(t, err)
}
