package angles

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEquidistant(t *testing.T) {
	for count := 1; count <= 24; count++ {
		got := GenerateEquidistant(count)
		require.Len(t, got, count)
		assert.Equal(t, 0.0, got[0])
		step := 360 / float64(count)
		for i := 1; i < count; i++ {
			assert.InDelta(t, step, got[i]-got[i-1], 1e-9, "count=%d i=%d", count, i)
			assert.Less(t, got[i], 360.0)
		}
	}
	assert.Nil(t, GenerateEquidistant(0))
	assert.Equal(t, []float64{0, 90, 180, 270}, GenerateEquidistant(4))
}

func TestApplyOverride(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		value   float64
		wantErr bool
		want    []float64
	}{
		{name: "locked first", index: 0, value: 10, wantErr: true},
		{name: "negative", index: -1, value: 10, wantErr: true},
		{name: "out of range", index: 4, value: 10, wantErr: true},
		{name: "valid", index: 2, value: 200, want: []float64{0, 90, 200, 270}},
		{name: "wrapped", index: 1, value: -45, want: []float64{0, 315, 180, 270}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := GenerateEquidistant(4)
			err := ApplyOverride(a, tc.index, tc.value)
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidIndex), "err = %v", err)
				assert.Equal(t, GenerateEquidistant(4), a)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, a)
		})
	}
}

func TestSetCountDiscardsOverrides(t *testing.T) {
	s := NewSet(4)
	require.NoError(t, s.Override(1, 45))
	assert.Equal(t, []float64{0, 45, 180, 270}, s.Angles())

	s.SetCount(4)
	assert.Equal(t, []float64{0, 45, 180, 270}, s.Angles(), "same count keeps overrides")

	s.SetCount(8)
	assert.Equal(t, GenerateEquidistant(8), s.Angles())

	s.SetCount(4)
	assert.Equal(t, GenerateEquidistant(4), s.Angles())
	assert.Equal(t, 4, s.Count())
}

func TestAnglesReturnsCopy(t *testing.T) {
	s := NewSet(3)
	a := s.Angles()
	a[1] = 999
	assert.NotEqual(t, 999.0, s.Angles()[1])
}
