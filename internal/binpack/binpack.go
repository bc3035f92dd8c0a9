// Package binpack groups files into archives of a bounded estimated
// size.
package binpack

import (
	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/estimate"
)

// Pack splits elements into archives using first-fit in input order: a
// new archive starts whenever adding the next file would reach the
// target estimated size. Entry order within an archive is the input
// order; no reordering takes place. A single file whose estimate
// reaches the target forms its own archive. Empty input yields no
// archives.
func Pack(elements []bundler.ArchiveElement, target int64, typ bundler.ArchiveType, est *estimate.Estimator) [][]bundler.ArchiveElement {
	var archives [][]bundler.ArchiveElement

	var running []bundler.ArchiveElement
	var runningEst int64

	for _, el := range elements {
		sz := est.Estimate(el.Size, typ)
		if len(running) > 0 && runningEst+sz >= target {
			archives = append(archives, running)
			running = nil
			runningEst = 0
		}
		running = append(running, el)
		runningEst += sz
	}

	if len(running) > 0 {
		archives = append(archives, running)
	}
	return archives
}
