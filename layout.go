package hdrhistogram

import (
	"math"
	"math/bits"

	"github.com/pingcap/errors"
)

// bucketLayout is the logarithmic/linear mapping from a recorded value to a
// counts-array index. It is immutable once built, except that Histogram
// replaces it wholesale on auto-resize (see histogram.go).
//
// The index arithmetic mirrors the original HdrHistogram algorithm: values
// are masked with subBucketMask before their bit length is taken, so a value
// sitting exactly on a bucket boundary is pushed into the wider (higher)
// bucket rather than split across the boundary.
type bucketLayout struct {
	lowestDiscernibleValue uint64
	highestTrackableValue  uint64
	significantDigits      int

	unitMagnitude               int32
	subBucketCountMagnitude     int32
	subBucketHalfCountMagnitude int32
	subBucketCount              int32
	subBucketHalfCount          int32
	subBucketMask               uint64
	bucketCount                 int32
	countsArrayLength           int32
}

const maxSignificantDigits = 5

func newBucketLayout(lowest, highest uint64, digits int) (*bucketLayout, error) {
	if digits < 0 || digits > maxSignificantDigits {
		return nil, errors.Annotatef(ErrInvalidArgument, "significant digits must be in [0,%d], got %d", maxSignificantDigits, digits)
	}
	if lowest < 1 {
		return nil, errors.Annotatef(ErrInvalidArgument, "lowestDiscernibleValue must be >= 1, got %d", lowest)
	}
	if highest < 2*lowest {
		return nil, errors.Annotatef(ErrInvalidArgument, "highestTrackableValue (%d) must be >= 2*lowestDiscernibleValue (%d)", highest, 2*lowest)
	}

	largestValueWithSingleUnitResolution := 2 * pow10(digits)

	subBucketCountMagnitude := int32(math.Ceil(log2(float64(largestValueWithSingleUnitResolution))))
	subBucketHalfCountMagnitude := subBucketCountMagnitude
	if subBucketHalfCountMagnitude < 1 {
		subBucketHalfCountMagnitude = 1
	}
	subBucketHalfCountMagnitude--

	unitMagnitude := int32(math.Floor(log2(float64(lowest))))
	if unitMagnitude < 0 {
		unitMagnitude = 0
	}

	subBucketCount := int32(1) << uint(subBucketHalfCountMagnitude+1)
	subBucketHalfCount := subBucketCount / 2
	subBucketMask := uint64(subBucketCount-1) << uint(unitMagnitude)

	// Smallest bucketCount such that a value of highest fits: start from the
	// full span bucket 0 covers at this unit magnitude (subBucketCount slots,
	// each unitMagnitude wide) and keep doubling until that span strictly
	// exceeds highest, so highest itself always lands inside the last bucket.
	trackableValue := uint64(subBucketCount) << uint(unitMagnitude)
	bucketsNeeded := int32(1)
	for trackableValue <= highest {
		trackableValue <<= 1
		bucketsNeeded++
	}

	countsArrayLength := (bucketsNeeded + 1) * subBucketHalfCount

	return &bucketLayout{
		lowestDiscernibleValue:      lowest,
		highestTrackableValue:       highest,
		significantDigits:           digits,
		unitMagnitude:               unitMagnitude,
		subBucketCountMagnitude:     subBucketCountMagnitude,
		subBucketHalfCountMagnitude: subBucketHalfCountMagnitude,
		subBucketCount:              subBucketCount,
		subBucketHalfCount:          subBucketHalfCount,
		subBucketMask:               subBucketMask,
		bucketCount:                 bucketsNeeded,
		countsArrayLength:           countsArrayLength,
	}, nil
}

func log2(v float64) float64 { return math.Log(v) / math.Log(2) }

func pow10(exp int) uint64 {
	n := uint64(1)
	for i := 0; i < exp; i++ {
		n *= 10
	}
	return n
}

func (l *bucketLayout) getBucketIndex(value uint64) int32 {
	pow2Ceiling := bits.Len64(value | l.subBucketMask)
	idx := int32(pow2Ceiling) - l.unitMagnitude - (l.subBucketHalfCountMagnitude + 1)
	if idx < 0 {
		return 0
	}
	return idx
}

func (l *bucketLayout) getSubBucketIdx(value uint64, bucketIdx int32) int32 {
	return int32(value >> uint(bucketIdx+l.unitMagnitude))
}

func (l *bucketLayout) countsIndex(bucketIdx, subBucketIdx int32) int32 {
	bucketBaseIdx := (bucketIdx + 1) << uint(l.subBucketHalfCountMagnitude)
	offsetInBucket := subBucketIdx - l.subBucketHalfCount
	return bucketBaseIdx + offsetInBucket
}

// indexOf maps a non-negative value to its counts-array index.
func (l *bucketLayout) indexOf(value uint64) int32 {
	bucketIdx := l.getBucketIndex(value)
	subBucketIdx := l.getSubBucketIdx(value, bucketIdx)
	return l.countsIndex(bucketIdx, subBucketIdx)
}

// valueFromBucket recovers the lowest value represented by (bucketIdx,
// subBucketIdx).
func (l *bucketLayout) valueFromBucket(bucketIdx, subBucketIdx int32) uint64 {
	return uint64(subBucketIdx) << uint(int64(bucketIdx)+int64(l.unitMagnitude))
}

// valueFromIndex recovers the lowest value represented by a flat
// counts-array index i.
func (l *bucketLayout) valueFromIndex(i int32) uint64 {
	bucketIdx := (i >> uint(l.subBucketHalfCountMagnitude)) - 1
	subBucketIdx := (i & (l.subBucketHalfCount - 1)) + l.subBucketHalfCount
	if bucketIdx < 0 {
		subBucketIdx -= l.subBucketHalfCount
		bucketIdx = 0
	}
	return l.valueFromBucket(bucketIdx, subBucketIdx)
}

func (l *bucketLayout) sizeOfEquivalentValueRange(value uint64) uint64 {
	bucketIdx := l.getBucketIndex(value)
	subBucketIdx := l.getSubBucketIdx(value, bucketIdx)
	adjustedBucket := bucketIdx
	if subBucketIdx >= l.subBucketCount {
		adjustedBucket++
	}
	return uint64(1) << uint(int64(l.unitMagnitude)+int64(adjustedBucket))
}

func (l *bucketLayout) lowestEquivalentValue(value uint64) uint64 {
	bucketIdx := l.getBucketIndex(value)
	subBucketIdx := l.getSubBucketIdx(value, bucketIdx)
	return l.valueFromBucket(bucketIdx, subBucketIdx)
}

func (l *bucketLayout) nextNonEquivalentValue(value uint64) uint64 {
	return l.lowestEquivalentValue(value) + l.sizeOfEquivalentValueRange(value)
}

func (l *bucketLayout) highestEquivalentValue(value uint64) uint64 {
	return l.nextNonEquivalentValue(value) - 1
}

func (l *bucketLayout) medianEquivalentValue(value uint64) uint64 {
	return l.lowestEquivalentValue(value) + (l.sizeOfEquivalentValueRange(value) >> 1)
}

// lowestEquivalentValueForIndex is a convenience returning the low end of
// the value range owned by counts-array index i.
func (l *bucketLayout) lowestEquivalentValueForIndex(i int32) uint64 {
	return l.lowestEquivalentValue(l.valueFromIndex(i))
}

// covers reports whether value can be represented without growing the
// layout.
func (l *bucketLayout) covers(value uint64) bool {
	return value <= l.highestTrackableValue
}

// nextHighestTrackableValue computes the smallest highestTrackableValue of
// the form 2^k*subBucketCount*lowestDiscernibleValue - 1 that covers value,
// per the auto-resize rule in spec.md 4.3.
func (l *bucketLayout) nextHighestTrackableValue(value uint64) uint64 {
	highest := uint64(l.subBucketCount)*l.lowestDiscernibleValue - 1
	for highest < value {
		highest = (highest+1)*2 - 1
	}
	return highest
}
