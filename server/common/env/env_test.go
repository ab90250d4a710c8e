package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	t.Setenv("TRIAGE_TEST_STRING", "  value ")
	assert.Equal(t, "value", String("TRIAGE_TEST_STRING", "fallback"))
	assert.Equal(t, "fallback", String("TRIAGE_TEST_STRING_MISSING", "fallback"))
}

func TestInt(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{raw: "", want: 7},
		{raw: "12", want: 12},
		{raw: "0", want: 7},
		{raw: "-3", want: 7},
		{raw: "abc", want: 7},
	}
	for _, tt := range tests {
		t.Setenv("TRIAGE_TEST_INT", tt.raw)
		assert.Equal(t, tt.want, Int("TRIAGE_TEST_INT", 7), "raw=%q", tt.raw)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("TRIAGE_TEST_BOOL", "false")
	assert.False(t, Bool("TRIAGE_TEST_BOOL", true))
	t.Setenv("TRIAGE_TEST_BOOL", "nope")
	assert.True(t, Bool("TRIAGE_TEST_BOOL", true))
}

func TestDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "", want: time.Minute},
		{raw: "30", want: 30 * time.Second},
		{raw: "2m", want: 2 * time.Minute},
		{raw: "-5s", want: time.Minute},
		{raw: "soon", want: time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("TRIAGE_TEST_DURATION", tt.raw)
		assert.Equal(t, tt.want, Duration("TRIAGE_TEST_DURATION", time.Minute), "raw=%q", tt.raw)
	}
}

func TestCSV(t *testing.T) {
	t.Setenv("TRIAGE_TEST_CSV", " a, b,,a ,c ")
	assert.Equal(t, []string{"a", "b", "c"}, CSV("TRIAGE_TEST_CSV", nil))

	t.Setenv("TRIAGE_TEST_CSV", " , ")
	assert.Equal(t, []string{"x"}, CSV("TRIAGE_TEST_CSV", []string{"x"}))
}
