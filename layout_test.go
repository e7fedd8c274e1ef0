package hdrhistogram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxSafeInt = (uint64(1) << 53) - 1

func TestNewBucketLayoutS1(t *testing.T) {
	l, err := newBucketLayout(1, maxSafeInt, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2048, l.subBucketCount)
	assert.EqualValues(t, 43, l.bucketCount)
	assert.EqualValues(t, 45056, l.countsArrayLength)
}

func TestIndexOfS2(t *testing.T) {
	l, err := newBucketLayout(1, maxSafeInt, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2000, l.indexOf(2000))
	assert.EqualValues(t, 2049, l.indexOf(2050))
}

func TestIndexOfS3(t *testing.T) {
	l, err := newBucketLayout(2000, maxSafeInt, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 15, l.indexOf(16000))
	assert.EqualValues(t, 4735, l.indexOf(maxSafeInt-1))
}

func TestNewBucketLayoutValidation(t *testing.T) {
	cases := []struct {
		name            string
		lowest, highest uint64
		digits          int
	}{
		{"digits too high", 1, 1000, 6},
		{"digits negative", 1, 1000, -1},
		{"lowest zero", 0, 1000, 3},
		{"highest too small", 100, 150, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := newBucketLayout(c.lowest, c.highest, c.digits)
			assert.Error(t, err)
		})
	}
}

// Invariant 1 from the testable-properties list: lowestEquivalentValue(v) <=
// v <= highestEquivalentValue(v), and both map back to v's own cell.
func TestEquivalentValueRangeInvariant(t *testing.T) {
	l, err := newBucketLayout(1, maxSafeInt, 3)
	require.NoError(t, err)

	values := []uint64{1, 2, 25, 50, 75, 1000, 2000, 2050, 16000, 1 << 20, maxSafeInt - 1}
	for _, v := range values {
		low := l.lowestEquivalentValue(v)
		high := l.highestEquivalentValue(v)
		assert.LessOrEqualf(t, low, v, "value %d", v)
		assert.LessOrEqualf(t, v, high, "value %d", v)
		assert.Equal(t, l.indexOf(low), l.indexOf(v))
		assert.Equal(t, l.indexOf(high), l.indexOf(v))
	}
}

// Invariant 3: the spread of values sharing v's cell, relative to v, stays
// within the precision bound implied by significantDigits, for v at or
// above lowest. The spread is highestEquivalentValue-lowestEquivalentValue
// (sizeOfEquivalentValueRange-1), which is 0 for values recorded exactly.
func TestPrecisionBound(t *testing.T) {
	const digits = 3
	l, err := newBucketLayout(1, maxSafeInt, digits)
	require.NoError(t, err)

	bound := 2.0
	for i := 0; i < digits; i++ {
		bound /= 10
	}

	for _, v := range []uint64{1, 10, 1000, 100000, 1 << 30, maxSafeInt - 1} {
		ratio := float64(l.highestEquivalentValue(v)-l.lowestEquivalentValue(v)) / float64(v)
		assert.LessOrEqualf(t, ratio, bound, "value %d ratio %f bound %f", v, ratio, bound)
	}
}

func TestValueFromIndexRoundTrip(t *testing.T) {
	l, err := newBucketLayout(1, maxSafeInt, 3)
	require.NoError(t, err)

	for _, v := range []uint64{0, 1, 25, 2000, 2050, 16000, 1 << 40} {
		idx := l.indexOf(v)
		recovered := l.valueFromIndex(idx)
		assert.Equal(t, idx, l.indexOf(recovered))
	}
}

func TestNextHighestTrackableValue(t *testing.T) {
	l, err := newBucketLayout(1, 1023, 2)
	require.NoError(t, err)
	assert.False(t, l.covers(2000))
	next := l.nextHighestTrackableValue(2000)
	assert.GreaterOrEqual(t, next, uint64(2000))

	grown, err := newBucketLayout(l.lowestDiscernibleValue, next, l.significantDigits)
	require.NoError(t, err)
	assert.True(t, grown.covers(2000))
}
