package localmapper

import (
	"context"
	"sync"

	"github.com/vislam/monoslam/geometry"
	"github.com/vislam/monoslam/internal/xlog"
	"github.com/vislam/monoslam/slammap"
)

// Config holds the tunable thresholds for one mapping run.
type Config struct {
	// Intrinsics is the (shared, monocular) camera calibration used to
	// compute epipolar geometry between covisible keyframes.
	Intrinsics geometry.CameraIntrinsics

	// QueueSize bounds how many pending keyframes InsertKeyFrame will
	// buffer before it blocks the caller (tracking thread).
	QueueSize int

	// CovisibilityMinShared is the minimum number of shared observations
	// for UpdateConnections to record a covisibility edge.
	CovisibilityMinShared int

	// MinFoundRatio is the FoundRatio floor below which a probationary
	// landmark is culled.
	MinFoundRatio float64

	// ProbationKeyFrames is how many keyframes a newly created landmark
	// must survive before it graduates off the probation list.
	ProbationKeyFrames int

	// NumNeighborsForCreation bounds how many of a keyframe's best
	// covisible neighbors are searched for new point/line triangulations.
	NumNeighborsForCreation int

	// LineOverlapThreshold is the minimum LineOverlapRatio between a
	// candidate line feature and one of the keyframe's already-bound line
	// features for CreateNewMapLinesConstraint to accept the candidate.
	LineOverlapThreshold float64

	// RedundancyRatio is the fraction of a keyframe's map points that
	// must be bad or also seen by at least RedundancyMinObservers other
	// keyframes for KeyFrameCulling to retire it.
	RedundancyRatio float64
	// RedundancyMinObservers is the number of other keyframes that must
	// also observe a point for it to count toward redundancy. Any
	// observing keyframe counts, whatever its scale.
	RedundancyMinObservers int
}

// DefaultConfig returns thresholds grounded on ORB-SLAM2's local mapping
// defaults, adapted to this module's simpler (monocular-only, no scale
// pyramid weighting) bookkeeping.
func DefaultConfig(k geometry.CameraIntrinsics) Config {
	return Config{
		Intrinsics:              k,
		QueueSize:               64,
		CovisibilityMinShared:   15,
		MinFoundRatio:           0.25,
		ProbationKeyFrames:      3,
		NumNeighborsForCreation: 10,
		LineOverlapThreshold:    0.5,
		RedundancyRatio:         0.9,
		RedundancyMinObservers:  3,
	}
}

// LocalMapper consumes keyframes produced by tracking and grows the map:
// culling unreliable recent landmarks, triangulating new ones against
// covisible neighbors, fusing duplicates, running bundle adjustment, and
// retiring redundant keyframes.
type LocalMapper struct {
	cfg Config

	m        *slammap.Map
	matcher  FeatureMatcher
	opt      Optimizer
	loop     LoopCloser
	vocab    BowVocabulary

	queue chan *slammap.KeyFrame

	recentPoints RecentlyAdded[*slammap.MapPoint]
	recentLines  RecentlyAdded[*slammap.MapLine]

	countMu sync.Mutex
	kfCount int

	stateMu sync.RWMutex
	state   State

	logger *xlog.Logger
}

// NewLocalMapper wires a LocalMapper to its map and external
// collaborators. Any of them may be nil: with a nil matcher no points or
// lines are created or fused, with a nil opt bundle adjustment is
// skipped, and loop and vocab may be nil if loop closing/place
// recognition are not in use.
func NewLocalMapper(m *slammap.Map, matcher FeatureMatcher, opt Optimizer, loop LoopCloser, vocab BowVocabulary, cfg Config, logger *xlog.Logger) *LocalMapper {
	if logger == nil {
		logger = xlog.Noop()
	}
	return &LocalMapper{
		cfg:     cfg,
		m:       m,
		matcher: matcher,
		opt:     opt,
		loop:    loop,
		vocab:   vocab,
		queue:   make(chan *slammap.KeyFrame, cfg.QueueSize),
		logger:  logger,
	}
}

// State returns the mapper's current processing phase.
func (lm *LocalMapper) State() State {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.state
}

func (lm *LocalMapper) setState(s State) {
	lm.stateMu.Lock()
	lm.state = s
	lm.stateMu.Unlock()
}

// InsertKeyFrame enqueues kf for processing, blocking if the queue is
// full. Tracking calls this once per new keyframe it creates.
func (lm *LocalMapper) InsertKeyFrame(kf *slammap.KeyFrame) {
	lm.queue <- kf
}

// QueueLen reports how many keyframes are waiting to be processed.
func (lm *LocalMapper) QueueLen() int {
	return len(lm.queue)
}

// Run drains the keyframe queue until ctx is cancelled, running the full
// mapping pipeline on each one in turn. It is meant to be the body of
// the mapping goroutine; callers typically do "go mapper.Run(ctx)".
func (lm *LocalMapper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			lm.setState(StateIdle)
			return
		case kf := <-lm.queue:
			lm.processOne(ctx, kf)
		}
	}
}

func (lm *LocalMapper) processOne(ctx context.Context, kf *slammap.KeyFrame) {
	lm.ProcessNewKeyFrame(kf)
	lm.MapPointCulling()
	lm.MapLineCulling()
	lm.CreateNewMapPoints(kf)
	lm.CreateNewMapLinesConstraint(kf)

	neighbors := kf.BestCovisible(lm.cfg.NumNeighborsForCreation)
	lm.setState(StateFusing)
	fused := lm.SearchInNeighbors(kf, neighbors)
	if fused > 0 {
		lm.logger.Infof("localmapper: fused %d duplicate observations into keyframe %d", fused, kf.ID)
	}

	if lm.opt != nil {
		lm.setState(StateOptimizing)
		lm.opt.LocalBundleAdjustment(kf, lm.m)
	}

	lm.setState(StateKeyFrameCulling)
	culled := lm.KeyFrameCulling(kf)
	if culled > 0 {
		lm.logger.Infof("localmapper: culled %d redundant keyframes near %d", culled, kf.ID)
	}

	if lm.loop != nil {
		lm.loop.InsertKeyFrame(kf)
	}

	lm.setState(StateIdle)
	_ = ctx
}

// ProcessNewKeyFrame inserts kf into the covisibility graph and marks
// every landmark it observes as visible, so FoundRatio accounting stays
// correct even for points/lines the keyframe merely re-observed rather
// than created.
func (lm *LocalMapper) ProcessNewKeyFrame(kf *slammap.KeyFrame) {
	lm.setState(StateProcessingKeyFrame)

	for _, mp := range kf.MapPoints() {
		mp.IncreaseVisible(1)
		mp.IncreaseFound(1)
	}
	for _, ml := range kf.MapLines() {
		ml.IncreaseVisible(1)
		ml.IncreaseFound(1)
	}

	kf.UpdateConnections(lm.cfg.CovisibilityMinShared)

	lm.countMu.Lock()
	lm.kfCount++
	lm.countMu.Unlock()
}

func (lm *LocalMapper) currentCount() int {
	lm.countMu.Lock()
	defer lm.countMu.Unlock()
	return lm.kfCount
}
