package hdrhistogram

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingcap/errors"
	"github.com/sirupsen/logrus"
)

var recorderIDSeq uint64

// Recorder holds an active Histogram and provides non-blocking interval
// snapshots by swapping it for a fresh or recycled one (spec.md 4.6). It assumes a single writer (RecordValue callers) and a
// single reader (GetIntervalHistogram callers), serialized externally if
// more than one goroutine plays either role; the flip itself is the only
// critical section and is guarded by a mutex so it is atomic with respect
// to the next RecordValue call.
type Recorder struct {
	mu     sync.Mutex
	active *Histogram
	cfg    Config
	id     uint64
}

// NewRecorder builds a Recorder whose active histogram is constructed from
// cfg; GetIntervalHistogram builds each fresh replacement from the same cfg.
func NewRecorder(cfg Config) (*Recorder, error) {
	active, err := NewHistogram(cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	id := atomic.AddUint64(&recorderIDSeq, 1)
	active.recorderID = id
	return &Recorder{active: active, cfg: cfg, id: id}, nil
}

// RecordValue delegates to the currently active histogram.
func (r *Recorder) RecordValue(v uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active.RecordValue(v)
}

// RecordValueWithCount delegates to the currently active histogram.
func (r *Recorder) RecordValueWithCount(v uint64, n int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active.RecordValueWithCount(v, n)
}

// RecordValueWithExpectedInterval delegates to the currently active
// histogram.
func (r *Recorder) RecordValueWithExpectedInterval(v, expectedInterval uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active.RecordValueWithExpectedInterval(v, expectedInterval)
}

// GetIntervalHistogram swaps the active histogram out for a fresh (or
// recycled) one and returns the one that was active, stamped with its
// interval's end timestamp. If recycled is non-nil, it must have been
// produced by this same Recorder (checked via a hidden instance id field);
// otherwise ErrRecorderMismatch is returned and nothing is swapped.
//
// The swap is the sole coordination point between the writer and the
// reader (spec.md 5): it must not race with a concurrent RecordValue call,
// which this method's internal lock guarantees.
func (r *Recorder) GetIntervalHistogram(recycled *Histogram) (*Histogram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if recycled != nil && recycled.recorderID != r.id {
		return nil, errors.Trace(ErrRecorderMismatch)
	}

	next := recycled
	if next == nil {
		fresh, err := NewHistogram(r.cfg)
		if err != nil {
			return nil, errors.Trace(err)
		}
		fresh.recorderID = r.id
		next = fresh
	} else {
		next.Reset()
	}

	now := time.Now().UnixMilli()
	done := r.active
	done.SetEndTimeStampMsec(now)
	r.active = next
	next.SetStartTimeStampMsec(now)

	log().WithFields(logrus.Fields{
		"tag":         done.Tag(),
		"total_count": done.TotalCount(),
	}).Debug("hdrhistogram: flipped interval histogram")

	return done, nil
}
