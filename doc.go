// Package hdrhistogram records non-negative integer samples across a wide
// dynamic range while guaranteeing a caller-chosen relative precision on
// every recorded value. It supports O(1) recording, exact percentile
// queries, merging and subtraction across histograms of differing
// precision, and correction for coordinated omission.
//
// The design follows Gil Tene's HdrHistogram: values are bucketed on a
// combined logarithmic/linear scale so that a fixed number of significant
// decimal digits is preserved everywhere from LowestDiscernibleValue up to
// HighestTrackableValue, using memory proportional to the log of the range
// rather than the range itself.
package hdrhistogram
