// Package estimate predicts the on-disk size of a file once archived,
// used by the bin-packer to decide when an archive is full.
package estimate

import "github.com/geopack/bundler/internal/bundler"

// Estimator scales file sizes by a configured average compression
// percentage. The prediction is deliberately crude; only relative
// placement matters.
type Estimator struct {
	pct int64
}

// New returns an Estimator assuming the given average compression
// percentage for compressing archive types.
func New(averageCompressionPct int64) *Estimator {
	return &Estimator{pct: averageCompressionPct}
}

// Estimate returns the predicted archived size of a file. Uncompressed
// container types pass the size through unchanged.
func (e *Estimator) Estimate(size int64, typ bundler.ArchiveType) int64 {
	if !typ.Compressing() {
		return size
	}
	est := size * (100 - e.pct) / 100
	if est < 0 {
		return 0
	}
	return est
}
