package localmapper

import "github.com/vislam/monoslam/slammap"

// MapPointCulling retires recently created map points that have not
// earned enough support: anything whose FoundRatio falls below
// cfg.MinFoundRatio before it has graduated off probation is erased from
// the map entirely, not merely hidden.
func (lm *LocalMapper) MapPointCulling() (culled int) {
	lm.setState(StatePointCulling)
	culled, _ = lm.recentPoints.Cull(lm.currentCount(), lm.cfg.ProbationKeyFrames, lm.cfg.MinFoundRatio, func(mp *slammap.MapPoint) {
		lm.m.EraseMapPoint(mp)
	})
	return culled
}

// MapLineCulling is the line-feature analogue of MapPointCulling.
func (lm *LocalMapper) MapLineCulling() (culled int) {
	lm.setState(StateLineCulling)
	culled, _ = lm.recentLines.Cull(lm.currentCount(), lm.cfg.ProbationKeyFrames, lm.cfg.MinFoundRatio, func(ml *slammap.MapLine) {
		lm.m.EraseMapLine(ml)
	})
	return culled
}
