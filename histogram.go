package hdrhistogram

import (
	"math"

	"github.com/pingcap/errors"
	"github.com/sirupsen/logrus"
)

const defaultHighestTrackableValue = (uint64(1) << 53) - 1

// Config is the builder-style set of construction parameters for a
// Histogram (spec.md 6).
type Config struct {
	LowestDiscernibleValue uint64
	HighestTrackableValue  uint64
	SignificantFigures     int
	AutoResize             bool
	Storage                StorageKind
}

// DefaultConfig returns spec.md 6's documented defaults: lowest=1,
// highest=2^53-1, 3 significant figures, auto-resize off, dense int64
// storage.
func DefaultConfig() Config {
	return Config{
		LowestDiscernibleValue: 1,
		HighestTrackableValue:  defaultHighestTrackableValue,
		SignificantFigures:     3,
		AutoResize:             false,
		Storage:                DenseInt64,
	}
}

// Validate checks the configuration against spec.md 7's InvalidArgument
// conditions without allocating a Histogram.
func (c Config) Validate() error {
	_, err := newBucketLayout(orDefault(c.LowestDiscernibleValue, 1), orDefault(c.HighestTrackableValue, defaultHighestTrackableValue), c.SignificantFigures)
	return err
}

func orDefault(v, d uint64) uint64 {
	if v == 0 {
		return d
	}
	return v
}

// Histogram records non-negative integer samples and answers exact
// percentile, mean, and standard-deviation queries over them.
//
// A Histogram is not safe for concurrent recording from multiple
// goroutines; see Recorder for a single-writer/single-reader snapshot
// pattern.
type Histogram struct {
	layout *bucketLayout
	counts countsStore

	autoResize bool

	totalCount      uint64
	maxValue        uint64
	minNonZeroValue uint64

	startTimeStampMsec int64
	endTimeStampMsec   int64
	tag                string

	recorderID uint64 // set by NewRecorder and Recorder.GetIntervalHistogram; zero means "not recorder-owned"
}

const noTag = "no-tag"

// New constructs a Histogram with the given range and precision, using the
// spec.md 6 defaults for everything else (auto-resize off, dense int64
// storage).
func New(lowestDiscernibleValue, highestTrackableValue uint64, significantFigures int) (*Histogram, error) {
	cfg := DefaultConfig()
	cfg.LowestDiscernibleValue = lowestDiscernibleValue
	cfg.HighestTrackableValue = highestTrackableValue
	cfg.SignificantFigures = significantFigures
	return NewHistogram(cfg)
}

// NewHistogram constructs a Histogram from a fully specified Config.
func NewHistogram(cfg Config) (*Histogram, error) {
	lowest := orDefault(cfg.LowestDiscernibleValue, 1)
	highest := orDefault(cfg.HighestTrackableValue, defaultHighestTrackableValue)
	digits := cfg.SignificantFigures
	layout, err := newBucketLayout(lowest, highest, digits)
	if err != nil {
		return nil, errors.Trace(err)
	}
	h := &Histogram{
		layout:          layout,
		counts:          newCountsStore(cfg.Storage, layout.countsArrayLength),
		autoResize:      cfg.AutoResize,
		minNonZeroValue: math.MaxUint64,
		tag:             noTag,
	}
	return h, nil
}

// LowestDiscernibleValue, HighestTrackableValue, and SignificantFigures
// expose the layout parameters the histogram was built (or auto-resized)
// with.
func (h *Histogram) LowestDiscernibleValue() uint64 { return h.layout.lowestDiscernibleValue }
func (h *Histogram) HighestTrackableValue() uint64  { return h.layout.highestTrackableValue }
func (h *Histogram) SignificantFigures() int        { return h.layout.significantDigits }
func (h *Histogram) AutoResize() bool               { return h.autoResize }
func (h *Histogram) StorageKind() StorageKind       { return h.counts.kind() }

// TotalCount, MaxValue, and MinNonZeroValue expose the running scalar
// state. MinNonZeroValue returns 0 if nothing has been recorded.
func (h *Histogram) TotalCount() uint64 { return h.totalCount }
func (h *Histogram) MaxValue() uint64   { return h.maxValue }
func (h *Histogram) MinNonZeroValue() uint64 {
	if h.minNonZeroValue == math.MaxUint64 {
		return 0
	}
	return h.minNonZeroValue
}

func (h *Histogram) Tag() string { return h.tag }
func (h *Histogram) SetTag(tag string) {
	if tag == "" {
		tag = noTag
	}
	h.tag = tag
}

func (h *Histogram) StartTimeStampMsec() int64 { return h.startTimeStampMsec }
func (h *Histogram) EndTimeStampMsec() int64   { return h.endTimeStampMsec }
func (h *Histogram) SetStartTimeStampMsec(msec int64) { h.startTimeStampMsec = msec }
func (h *Histogram) SetEndTimeStampMsec(msec int64)   { h.endTimeStampMsec = msec }

// RecordValue records a single occurrence of v (spec.md 4.2).
func (h *Histogram) RecordValue(v uint64) error {
	return h.RecordValueWithCount(v, 1)
}

// RecordValueWithCount records n occurrences of v.
func (h *Histogram) RecordValueWithCount(v uint64, n int64) error {
	if n < 0 {
		return errors.Annotatef(ErrInvalidArgument, "count must be >= 0, got %d", n)
	}
	if !h.layout.covers(v) {
		if !h.autoResize {
			return errors.Annotatef(ErrOutOfRange, "value %d exceeds highestTrackableValue %d", v, h.layout.highestTrackableValue)
		}
		if err := h.resizeToCover(v); err != nil {
			return errors.Trace(err)
		}
	}

	idx := h.layout.indexOf(v)
	h.counts.add(idx, n)
	h.totalCount += uint64(n)
	if v > h.maxValue {
		h.maxValue = v
	}
	if v > 0 && v < h.minNonZeroValue {
		h.minNonZeroValue = v
	}
	return nil
}

// RecordValueWithExpectedInterval records v, then backfills synthetic
// samples spaced expectedInterval apart to correct for coordinated
// omission (spec.md 4.2, Glossary). If expectedInterval is 0 or v does not
// exceed it, this is equivalent to RecordValue(v).
func (h *Histogram) RecordValueWithExpectedInterval(v, expectedInterval uint64) error {
	if err := h.RecordValue(v); err != nil {
		return errors.Trace(err)
	}
	if expectedInterval == 0 || v <= expectedInterval {
		return nil
	}
	missing := v - expectedInterval
	for missing >= expectedInterval {
		if err := h.RecordValue(missing); err != nil {
			return errors.Trace(err)
		}
		missing -= expectedInterval
	}
	return nil
}

// resizeToCover grows the layout and counts store so value is
// representable, preserving every existing cell at its original index
// (spec.md 4.3): the index arithmetic does not depend on bucketCount, so
// values already recorded keep the same index under the larger layout.
func (h *Histogram) resizeToCover(value uint64) error {
	newHighest := h.layout.nextHighestTrackableValue(value)
	newLayout, err := newBucketLayout(h.layout.lowestDiscernibleValue, newHighest, h.layout.significantDigits)
	if err != nil {
		return errors.Trace(err)
	}

	newCounts := newCountsStore(h.counts.kind(), newLayout.countsArrayLength)
	oldLen := h.counts.length()
	for i := int32(0); i < oldLen; i++ {
		if c := h.counts.get(i); c != 0 {
			newCounts.set(i, c)
		}
	}

	log().WithFields(logrus.Fields{
		"old_highest": h.layout.highestTrackableValue,
		"new_highest": newHighest,
	}).Debug("hdrhistogram: auto-resized to cover recorded value")

	h.layout = newLayout
	h.counts = newCounts
	return nil
}

// GetValueAtPercentile walks cells in ascending index order and returns the
// highest equivalent value of the cell at which cumulative count first
// reaches ceil(p/100*totalCount). p is clamped to [0,100].
func (h *Histogram) GetValueAtPercentile(p float64) uint64 {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if h.totalCount == 0 {
		return 0
	}

	countAtPercentile := int64(math.Ceil((p / 100.0) * float64(h.totalCount)))
	if countAtPercentile < 1 {
		countAtPercentile = 1
	}

	var total int64
	n := h.counts.length()
	for i := int32(0); i < n; i++ {
		c := h.counts.get(i)
		if c == 0 {
			continue
		}
		total += c
		if total >= countAtPercentile {
			return h.layout.highestEquivalentValue(h.layout.valueFromIndex(i))
		}
	}
	return h.layout.highestEquivalentValue(h.layout.lowestEquivalentValue(h.maxValue))
}

// GetMean returns the count-weighted arithmetic mean of recorded values,
// using each cell's median equivalent value as its representative. Returns
// 0 for an empty histogram.
func (h *Histogram) GetMean() float64 {
	if h.totalCount == 0 {
		return 0
	}
	var total float64
	n := h.counts.length()
	for i := int32(0); i < n; i++ {
		c := h.counts.get(i)
		if c == 0 {
			continue
		}
		median := h.layout.medianEquivalentValue(h.layout.valueFromIndex(i))
		total += float64(c) * float64(median)
	}
	return total / float64(h.totalCount)
}

// GetStdDeviation returns the count-weighted standard deviation of
// recorded values, using the same per-cell representative value as
// GetMean.
func (h *Histogram) GetStdDeviation() float64 {
	if h.totalCount == 0 {
		return 0
	}
	mean := h.GetMean()
	var variance float64
	n := h.counts.length()
	for i := int32(0); i < n; i++ {
		c := h.counts.get(i)
		if c == 0 {
			continue
		}
		median := float64(h.layout.medianEquivalentValue(h.layout.valueFromIndex(i)))
		dev := median - mean
		variance += dev * dev * float64(c)
	}
	return math.Sqrt(variance / float64(h.totalCount))
}

// Add merges other's recorded values into h (spec.md 4.2). Each non-zero
// cell in other is replayed into h as a count of other's median equivalent
// value for that cell, so precision loss is bounded by h's own resolution,
// not other's. If a value from other exceeds h's trackable range and h is
// not auto-resizing, Add fails with ErrOutOfRange and h is left with
// whatever cells were already merged (matching the teacher's
// drop-and-report Merge semantics translated into a hard error, since this
// spec has no "dropped count" return value).
func (h *Histogram) Add(other *Histogram) error {
	if other == nil {
		return nil
	}
	it := other.RecordedValues()
	for it.Next() {
		median := other.layout.medianEquivalentValue(it.ValueIteratedTo)
		if err := h.RecordValueWithCount(median, it.CountAtValueIteratedTo); err != nil {
			log().WithFields(logrus.Fields{
				"value":                   median,
				"highest_trackable_value": h.layout.highestTrackableValue,
			}).Warn("hdrhistogram: add operand exceeds receiver range")
			return errors.Trace(err)
		}
	}
	h.mergeTimestamps(other)
	return nil
}

// Subtract removes other's recorded values from h. It fails with
// ErrSubtractionUnderflow if any resulting cell would go negative or if
// other contains a value outside h's trackable range.
func (h *Histogram) Subtract(other *Histogram) error {
	if other == nil {
		return nil
	}
	it := other.RecordedValues()
	for it.Next() {
		median := other.layout.medianEquivalentValue(it.ValueIteratedTo)
		if !h.layout.covers(median) {
			log().WithFields(logrus.Fields{
				"value":                   median,
				"highest_trackable_value": h.layout.highestTrackableValue,
			}).Warn("hdrhistogram: subtract operand exceeds receiver range")
			return errors.Trace(ErrSubtractionUnderflow)
		}
		idx := h.layout.indexOf(median)
		cur := h.counts.get(idx)
		if cur < it.CountAtValueIteratedTo {
			return errors.Trace(ErrSubtractionUnderflow)
		}
		h.counts.add(idx, -it.CountAtValueIteratedTo)
		h.totalCount -= uint64(it.CountAtValueIteratedTo)
	}
	h.recomputeExtremes()
	return nil
}

// recomputeExtremes rescans every cell to refresh maxValue/minNonZeroValue.
// Subtract decrements counts directly rather than flowing through
// RecordValue, so the running max/min can go stale once the cell that held
// them is emptied; this mirrors HdrHistogram's own post-subtract rescan
// (establishInternalTackingValues) rather than trying to track extremes
// incrementally through arbitrary decrements.
func (h *Histogram) recomputeExtremes() {
	n := h.counts.length()
	maxIdx := int32(-1)
	minNonZeroIdx := int32(-1)
	for i := int32(0); i < n; i++ {
		if h.counts.get(i) == 0 {
			continue
		}
		maxIdx = i
		if minNonZeroIdx == -1 && h.layout.lowestEquivalentValue(h.layout.valueFromIndex(i)) > 0 {
			minNonZeroIdx = i
		}
	}
	if maxIdx == -1 {
		h.maxValue = 0
		h.minNonZeroValue = math.MaxUint64
		return
	}
	h.maxValue = h.layout.highestEquivalentValue(h.layout.valueFromIndex(maxIdx))
	if minNonZeroIdx == -1 {
		h.minNonZeroValue = math.MaxUint64
	} else {
		h.minNonZeroValue = h.layout.lowestEquivalentValue(h.layout.valueFromIndex(minNonZeroIdx))
	}
}

func (h *Histogram) mergeTimestamps(other *Histogram) {
	if other.startTimeStampMsec != 0 && (h.startTimeStampMsec == 0 || other.startTimeStampMsec < h.startTimeStampMsec) {
		h.startTimeStampMsec = other.startTimeStampMsec
	}
	if other.endTimeStampMsec > h.endTimeStampMsec {
		h.endTimeStampMsec = other.endTimeStampMsec
	}
}

// Reset empties the histogram: every cell is zeroed and all scalar state
// (totalCount, max, minNonZero, timestamps, tag) returns to its initial
// value.
func (h *Histogram) Reset() {
	h.counts.clear()
	h.totalCount = 0
	h.maxValue = 0
	h.minNonZeroValue = math.MaxUint64
	h.startTimeStampMsec = 0
	h.endTimeStampMsec = 0
	h.tag = noTag
}

// CopyCorrectedForCoordinatedOmission returns a new histogram whose content
// equals recording each of h's samples via RecordValueWithExpectedInterval.
func (h *Histogram) CopyCorrectedForCoordinatedOmission(expectedInterval uint64) (*Histogram, error) {
	cfg := Config{
		LowestDiscernibleValue: h.layout.lowestDiscernibleValue,
		HighestTrackableValue:  h.layout.highestTrackableValue,
		SignificantFigures:     h.layout.significantDigits,
		AutoResize:             h.autoResize,
		Storage:                h.counts.kind(),
	}
	dst, err := NewHistogram(cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dst.tag = h.tag
	dst.startTimeStampMsec = h.startTimeStampMsec
	dst.endTimeStampMsec = h.endTimeStampMsec

	it := h.RecordedValues()
	for it.Next() {
		median := h.layout.medianEquivalentValue(it.ValueIteratedTo)
		for k := int64(0); k < it.CountAtValueIteratedTo; k++ {
			if err := dst.RecordValueWithExpectedInterval(median, expectedInterval); err != nil {
				return nil, errors.Trace(err)
			}
		}
	}
	return dst, nil
}

// Copy returns a deep, independent copy of h.
func (h *Histogram) Copy() (*Histogram, error) {
	dst, err := NewHistogram(Config{
		LowestDiscernibleValue: h.layout.lowestDiscernibleValue,
		HighestTrackableValue:  h.layout.highestTrackableValue,
		SignificantFigures:     h.layout.significantDigits,
		AutoResize:             h.autoResize,
		Storage:                h.counts.kind(),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := dst.Add(h); err != nil {
		return nil, errors.Trace(err)
	}
	dst.tag = h.tag
	dst.startTimeStampMsec = h.startTimeStampMsec
	dst.endTimeStampMsec = h.endTimeStampMsec
	return dst, nil
}
