package localmapper

import "github.com/vislam/monoslam/slammap"

// KeyFrameCulling retires keyframes near kf in the covisibility graph
// whose observations are almost entirely redundant: if at least
// cfg.RedundancyRatio of a covisible neighbor's map points are each
// either bad or also observed by cfg.RedundancyMinObservers other
// keyframes, that neighbor contributes little unique information and is
// erased from the map. Any other observing keyframe counts; the
// observers' scale and vantage are not compared.
func (lm *LocalMapper) KeyFrameCulling(kf *slammap.KeyFrame) (culled int) {
	for _, nid := range kf.BestCovisible(0) {
		neighbor := lm.m.KeyFrame(nid)
		if neighbor == nil || neighbor.IsBad() || neighbor.ID == kf.ID {
			continue
		}

		points := neighbor.MapPoints()
		if len(points) == 0 {
			continue
		}

		redundant := 0
		for _, mp := range points {
			if mp.IsBad() {
				redundant++
				continue
			}
			observers := 0
			for otherID := range mp.Observations() {
				if otherID == neighbor.ID {
					continue
				}
				observers++
				if observers >= lm.cfg.RedundancyMinObservers {
					break
				}
			}
			if observers >= lm.cfg.RedundancyMinObservers {
				redundant++
			}
		}

		if float64(redundant) >= lm.cfg.RedundancyRatio*float64(len(points)) {
			lm.m.EraseKeyFrame(neighbor)
			culled++
		}
	}
	return culled
}
