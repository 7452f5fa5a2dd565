package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDurationStandardUnits(t *testing.T) {
	// Anything the standard library accepts passes through unchanged.
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"1h30m45s", time.Hour + 30*time.Minute + 45*time.Second},
		{"1.5h", 90 * time.Minute},
		{"500ms", 500 * time.Millisecond},
		{"100us", 100 * time.Microsecond},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDurationDayAndWeekUnits(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"1d", 24 * time.Hour},
		{"30d", 30 * 24 * time.Hour},
		{"365d", 365 * 24 * time.Hour},
		{"0d", 0},
		{"-1d", -24 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"4w", 4 * 7 * 24 * time.Hour},
		{"52w", 52 * 7 * 24 * time.Hour},
		{"0w", 0},
		{"-1w", -7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDurationRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"words", "forever"},
		{"number without unit", "123"},
		{"fractional days", "1.5d"},
		{"fractional weeks", "2.5w"},
		{"unit without number", "d"},
		{"uppercase unit", "1D"},
		{"space before unit", "1 d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDuration(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid duration")
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0s"},
		{"under a minute", 45 * time.Second, "45s"},
		{"top of the seconds range", 59 * time.Second, "59s"},
		{"under an hour", 12 * time.Minute, "12m"},
		{"top of the minutes range", 59 * time.Minute, "59m"},
		{"exactly one hour", time.Hour, "1.0h"},
		{"fractional hours", 2*time.Hour + 30*time.Minute, "2.5h"},
		{"just under a day", 23 * time.Hour, "23.0h"},
		{"exactly one day", 24 * time.Hour, "1.0d"},
		{"day and a half", 36 * time.Hour, "1.5d"},
		{"retention window", 30 * 24 * time.Hour, "30.0d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.d))
		})
	}
}

func TestFormatDurationSubSecond(t *testing.T) {
	// %.0f rounds half to even, so 500ms lands on "0s".
	assert.Equal(t, "0s", FormatDuration(500*time.Millisecond))
	assert.Equal(t, "1s", FormatDuration(900*time.Millisecond))
	assert.Equal(t, "0s", FormatDuration(500*time.Microsecond))
}

func TestFormatDurationNegative(t *testing.T) {
	// Negative durations fail every range check and fall through to seconds.
	assert.Equal(t, "-30s", FormatDuration(-30*time.Second))
	assert.Equal(t, "-7200s", FormatDuration(-2*time.Hour))
	assert.Equal(t, "-86400s", FormatDuration(-24*time.Hour))
}

func BenchmarkParseDuration(b *testing.B) {
	b.Run("standard", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ParseDuration("1h30m")
		}
	})
	b.Run("days", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ParseDuration("30d")
		}
	})
}
