package hdrhistogram

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// PercentileReport renders a Histogram's percentile distribution as the
// fixed-width text table or CSV spec.md 6 describes: right-aligned Value,
// Percentile, TotalCount, and 1/(1-Percentile) columns, followed by a
// footer of summary statistics. The walk-and-accumulate shape is grounded
// on couchbaselabs-ghistogram's EmitGraph; the column contract itself comes
// from spec.md 6.
type PercentileReport struct {
	h *Histogram
}

// NewPercentileReport wraps h for distribution reporting.
func NewPercentileReport(h *Histogram) *PercentileReport {
	return &PercentileReport{h: h}
}

// WriteDistribution writes the plain-text percentile distribution table.
// Values are divided by scale (1 if <= 0) before being printed with three
// decimal places. The 100th-percentile row omits the 1/(1-Percentile)
// ratio column.
func (r *PercentileReport) WriteDistribution(w io.Writer, ticksPerHalfDistance int32, scale float64) error {
	if scale <= 0 {
		scale = 1
	}
	if _, err := fmt.Fprintf(w, "%12s %14s %10s %14s\n\n", "Value", "Percentile", "TotalCount", "1/(1-Percentile)"); err != nil {
		return err
	}

	it := r.h.Percentile(ticksPerHalfDistance)
	for it.Next() {
		value := float64(it.ValueIteratedTo) / scale
		percentileFraction := it.PercentileIteratedTo / 100.0
		if it.PercentileIteratedTo >= 100 {
			if _, err := fmt.Fprintf(w, "%12.3f %14.12f %10d\n", value, percentileFraction, it.TotalCountToThisValue); err != nil {
				return err
			}
			continue
		}
		ratio := 1.0 / (1.0 - percentileFraction)
		if _, err := fmt.Fprintf(w, "%12.3f %14.12f %10d %14.2f\n", value, percentileFraction, it.TotalCountToThisValue, ratio); err != nil {
			return err
		}
	}

	return r.writeFooter(w, scale)
}

func (r *PercentileReport) writeFooter(w io.Writer, scale float64) error {
	_, err := fmt.Fprintf(w, "#[Mean: %.3f, StdDeviation: %.3f]\n#[Max: %.3f]\n#[Total count: %d]\n#[Buckets: %d, SubBuckets: %d]\n",
		r.h.GetMean()/scale,
		r.h.GetStdDeviation()/scale,
		float64(r.h.MaxValue())/scale,
		r.h.TotalCount(),
		r.h.layout.bucketCount,
		r.h.layout.subBucketCount,
	)
	return err
}

// WriteDistributionCSV writes the comma-separated variant: a quoted header
// row, then one row per percentile tick, writing "Infinity" in the ratio
// column for the 100th-percentile row.
func (r *PercentileReport) WriteDistributionCSV(w io.Writer, ticksPerHalfDistance int32, scale float64) error {
	if scale <= 0 {
		scale = 1
	}
	// encoding/csv only quotes fields that need it, so the quoted header is
	// written directly.
	if _, err := io.WriteString(w, `"Value","Percentile","TotalCount","1/(1-Percentile)"`+"\n"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)

	it := r.h.Percentile(ticksPerHalfDistance)
	for it.Next() {
		value := float64(it.ValueIteratedTo) / scale
		percentileFraction := it.PercentileIteratedTo / 100.0
		ratio := "Infinity"
		if it.PercentileIteratedTo < 100 {
			ratio = strconv.FormatFloat(1.0/(1.0-percentileFraction), 'f', 2, 64)
		}
		row := []string{
			strconv.FormatFloat(value, 'f', 3, 64),
			strconv.FormatFloat(percentileFraction, 'f', 12, 64),
			strconv.FormatInt(it.TotalCountToThisValue, 10),
			ratio,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// String renders WriteDistribution with the default tick density and scale
// into a string, for logging or debugging. Never call this on a hot path.
func (r *PercentileReport) String() string {
	var b strings.Builder
	_ = r.WriteDistribution(&b, 5, 1)
	return b.String()
}
