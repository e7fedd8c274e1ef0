package hdrhistogram

import (
	"math"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordValueAndPercentile(t *testing.T) {
	h, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)

	require.NoError(t, h.RecordValue(25))
	require.NoError(t, h.RecordValue(50))
	require.NoError(t, h.RecordValue(75))

	assert.EqualValues(t, 3, h.TotalCount())
	assert.InDelta(t, 50.0, h.GetMean(), 1e-9)
	assert.InDelta(t, 20.41241452, h.GetStdDeviation(), 1e-6)
}

// Testable property 2: round-trip through percentile(100).
func TestGetValueAtPercentile100RoundTrip(t *testing.T) {
	h, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(75))

	got := h.GetValueAtPercentile(100)
	assert.Equal(t, h.layout.highestEquivalentValue(75), got)
}

// Testable property 5: recordValueWithCount(v, n) equals n calls to
// recordValue(v).
func TestRecordValueWithCountEquivalence(t *testing.T) {
	single, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		require.NoError(t, single.RecordValue(512))
	}

	batched, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)
	require.NoError(t, batched.RecordValueWithCount(512, 7))

	assert.Equal(t, single.TotalCount(), batched.TotalCount())
	assert.Equal(t, single.GetValueAtPercentile(100), batched.GetValueAtPercentile(100))
	assert.InDelta(t, single.GetMean(), batched.GetMean(), 1e-9)
}

func TestRecordValueOutOfRange(t *testing.T) {
	h, err := New(1, 1023, 2)
	require.NoError(t, err)
	err = h.RecordValue(2000)
	assert.Equal(t, ErrOutOfRange, errors.Cause(err))
}

func TestRecordValueAutoResize(t *testing.T) {
	h, err := NewHistogram(Config{
		LowestDiscernibleValue: 1,
		HighestTrackableValue:  1023,
		SignificantFigures:     2,
		AutoResize:             true,
	})
	require.NoError(t, err)

	require.NoError(t, h.RecordValue(2000))
	assert.True(t, h.HighestTrackableValue() >= 2000)
	assert.EqualValues(t, 1, h.TotalCount())
	assert.Equal(t, uint64(2000), h.MaxValue())
}

// S5: coordinated-omission correction.
func TestRecordValueWithExpectedInterval(t *testing.T) {
	h, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)

	require.NoError(t, h.RecordValueWithExpectedInterval(207, 100))
	assert.EqualValues(t, 2, h.TotalCount())
	assert.Equal(t, uint64(107), h.MinNonZeroValue())
	assert.Equal(t, uint64(207), h.MaxValue())
}

func TestCopyCorrectedForCoordinatedOmission(t *testing.T) {
	h, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(207))
	require.NoError(t, h.RecordValue(207))

	corrected100, err := h.CopyCorrectedForCoordinatedOmission(100)
	require.NoError(t, err)
	assert.EqualValues(t, 4, corrected100.TotalCount())
	assert.Equal(t, uint64(107), corrected100.MinNonZeroValue())
	assert.Equal(t, uint64(207), corrected100.MaxValue())

	corrected1000, err := h.CopyCorrectedForCoordinatedOmission(1000)
	require.NoError(t, err)
	assert.EqualValues(t, 2, corrected1000.TotalCount())
	assert.Equal(t, uint64(207), corrected1000.MinNonZeroValue())
	assert.Equal(t, uint64(207), corrected1000.MaxValue())
}

// S6: add across histograms with differing precision and trackable range.
func TestAddHeterogeneous(t *testing.T) {
	h1, err := New(1, maxSafeInt, 2)
	require.NoError(t, err)
	require.NoError(t, h1.RecordValue(42000))

	h2, err := NewHistogram(Config{
		LowestDiscernibleValue: 1,
		HighestTrackableValue:  1024,
		SignificantFigures:     2,
		AutoResize:             true,
	})
	require.NoError(t, err)
	require.NoError(t, h2.RecordValue(1000))

	require.NoError(t, h1.Add(h2))
	assert.EqualValues(t, 2, h1.TotalCount())
	assert.Equal(t, int64(215), int64(h1.GetMean()/100))
}

func TestAddOutOfRangeOperand(t *testing.T) {
	h1, err := New(1, 1023, 2)
	require.NoError(t, err)
	h2, err := New(1, maxSafeInt, 2)
	require.NoError(t, err)
	require.NoError(t, h2.RecordValue(50000))

	err = h1.Add(h2)
	assert.Equal(t, ErrOutOfRange, errors.Cause(err))
}

// Testable property 4: add then subtract returns to the same distribution.
func TestAddThenSubtractRoundTrip(t *testing.T) {
	h, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(10))
	require.NoError(t, h.RecordValue(20))
	require.NoError(t, h.RecordValue(30))

	before, err := h.Copy()
	require.NoError(t, err)

	other, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)
	require.NoError(t, other.RecordValue(20))

	require.NoError(t, h.Add(other))
	require.NoError(t, h.Subtract(other))

	assert.Equal(t, before.TotalCount(), h.TotalCount())
	for _, p := range []float64{0, 25, 50, 75, 100} {
		assert.Equal(t, before.GetValueAtPercentile(p), h.GetValueAtPercentile(p))
	}
}

func TestSubtractUnderflow(t *testing.T) {
	h, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(10))

	other, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)
	require.NoError(t, other.RecordValue(10))
	require.NoError(t, other.RecordValue(10))

	err = h.Subtract(other)
	assert.Equal(t, ErrSubtractionUnderflow, errors.Cause(err))
}

// Subtracting away the cell that holds the current max (or min-non-zero)
// must refresh both, not leave them pointing at values no longer present.
func TestSubtractRefreshesMaxAndMinNonZero(t *testing.T) {
	h, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(10))
	require.NoError(t, h.RecordValue(20))
	require.NoError(t, h.RecordValue(90))

	assert.Equal(t, uint64(90), h.MaxValue())
	assert.Equal(t, uint64(10), h.MinNonZeroValue())

	other, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)
	require.NoError(t, other.RecordValue(90))
	require.NoError(t, other.RecordValue(10))

	require.NoError(t, h.Subtract(other))

	assert.Equal(t, h.layout.highestEquivalentValue(20), h.MaxValue())
	assert.Equal(t, h.layout.lowestEquivalentValue(20), h.MinNonZeroValue())
}

// Testable property 7: reset clears everything.
func TestReset(t *testing.T) {
	h, err := New(1, maxSafeInt, 3)
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(100))
	h.SetTag("interval-1")
	h.SetStartTimeStampMsec(1000)
	h.SetEndTimeStampMsec(2000)

	h.Reset()

	assert.EqualValues(t, 0, h.TotalCount())
	assert.Equal(t, uint64(0), h.MaxValue())
	assert.Equal(t, uint64(0), h.MinNonZeroValue())
	assert.Equal(t, int64(0), h.StartTimeStampMsec())
	assert.Equal(t, int64(0), h.EndTimeStampMsec())
	assert.Equal(t, noTag, h.Tag())
}

func TestConfigValidateRejectsBadArguments(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HighestTrackableValue = cfg.LowestDiscernibleValue
	assert.Error(t, cfg.Validate())
}

func TestDenseInt32HoldsMaxInt32Count(t *testing.T) {
	h, err := NewHistogram(Config{
		LowestDiscernibleValue: 1,
		HighestTrackableValue:  1023,
		SignificantFigures:     2,
		Storage:                DenseInt32,
	})
	require.NoError(t, err)
	assert.Equal(t, DenseInt32, h.StorageKind())
	require.NoError(t, h.RecordValueWithCount(5, int64(math.MaxInt32)))
	assert.EqualValues(t, math.MaxInt32, h.TotalCount())
}
