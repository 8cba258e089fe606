// internal/parser/parser_test.go
package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Fields(t *testing.T) {
	// temp "1e" at [8:10], power "64" at [12:14], voltage "4e2" at [15:18]
	r, err := Parse("d15507001e006404e200000000000000")
	require.NoError(t, err)

	assert.Equal(t, 30, r.Temperature)
	assert.Equal(t, 100, r.Power)
	assert.InDelta(t, 12.50, r.Voltage, 1e-9)
	assert.Equal(t, uint16(1250), r.Centivolts())
}

func TestParse_OffsetsAreCharacterBased(t *testing.T) {
	r, err := Parse("d1550700001e00640112000000000000")
	require.NoError(t, err)

	// [8:10]="00", [12:14]="00", [15:18]="401"
	assert.Equal(t, 0, r.Temperature)
	assert.Equal(t, 0, r.Power)
	assert.InDelta(t, 10.25, r.Voltage, 1e-9)
}

func TestParse_UnrecognizedFrame(t *testing.T) {
	for _, s := range []string{
		"",
		"d15508001e006404e200000000000000",
		"00d15507001e006404e2000000000000",
		"D15507001E006404E200000000000000",
	} {
		r, err := Parse(s)
		assert.ErrorIs(t, err, ErrUnrecognizedFrame, s)
		assert.Equal(t, Reading{}, r)
	}
}

func TestParse_MalformedField(t *testing.T) {
	cases := map[string]string{
		"temperature": "d1550700zz006404e200000000000000",
		"power":       "d15507001e00zz04e200000000000000",
		"voltage":     "d15507001e00640g1200000000000000",
		"short":       "d15507001e00",
	}

	for name, s := range cases {
		r, err := Parse(s)
		assert.ErrorIs(t, err, ErrMalformedField, name)
		assert.Equal(t, Reading{}, r, name)
	}
}

func TestReading_IsZero(t *testing.T) {
	assert.True(t, Reading{}.IsZero())
	assert.True(t, Reading{Power: 5}.IsZero())
	assert.False(t, Reading{Voltage: 12.1}.IsZero())
	assert.False(t, Reading{Temperature: 1}.IsZero())
}
