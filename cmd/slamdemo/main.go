// Command slamdemo runs the two-view initializer over the first two
// frames of an image sequence, then spins up the local mapper in the
// background and feeds it a handful of synthetic follow-on keyframes so
// its culling/creation/fusion/keyframe-culling pipeline runs end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"gocv.io/x/gocv"
	"golang.org/x/term"

	"github.com/vislam/monoslam/config"
	"github.com/vislam/monoslam/geometry"
	"github.com/vislam/monoslam/initializer"
	"github.com/vislam/monoslam/internal/xlog"
	"github.com/vislam/monoslam/localmapper"
	"github.com/vislam/monoslam/slammap"
)

func main() {
	configPath := flag.String("config", "", "path to an ini config file (optional; falls back to built-in defaults)")
	sequenceDir := flag.String("sequence", "", "directory of two or more ordered frame images (jpg/png)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
	}
	if *sequenceDir != "" {
		cfg.Input.SequencePath = *sequenceDir
	}
	if cfg.Input.SequencePath == "" {
		log.Fatal("no sequence directory given; pass -sequence or set [Input] sequencePath in the config file")
	}

	cols, _ := terminalWidth()
	fmt.Println(centerBanner("monoslam demo", cols))

	frame1, frame2, err := loadFirstTwoFrames(cfg.Input.SequencePath)
	if err != nil {
		log.Fatalf("loading sequence frames: %v", err)
	}
	defer frame1.Close()
	defer frame2.Close()

	p1, p2, err := orbCorrespondences(frame1, frame2)
	if err != nil {
		log.Fatalf("feature matching: %v", err)
	}
	fmt.Printf("matched %d ORB correspondences between frame 1 and frame 2\n", len(p1))

	if len(p1) < cfg.Init.MinMatches {
		log.Fatalf("only %d ORB correspondences found, need at least %d", len(p1), cfg.Init.MinMatches)
	}

	init := initializer.New(initializer.Frame{Points: p1}, initializer.Config{
		Intrinsics:    cfg.Camera.Intrinsics(),
		Sigma:         cfg.Init.ReprojectionSigma,
		MaxIterations: cfg.Init.NumRANSACIterations,
	})

	// p1 and p2 are already positionally aligned by orbCorrespondences,
	// so the match vector is just the identity.
	matches := make([]initializer.Match, len(p1))
	for i := range matches {
		matches[i] = i
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("initializing"),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	ok, recon := init.Initialize(initializer.Frame{Points: p2}, matches, nil)
	_ = bar.Finish()

	if !ok {
		fmt.Println("initialization failed: insufficient parallax or ambiguous geometry")
		return
	}
	fmt.Printf("initialized: usedHomography=%v parallax=%.2f deg points=%d\n",
		recon.UsedHomography, recon.ParallaxDeg, countValid(recon.PointValid))

	runLocalMappingDemo(cfg, recon)
}

// runLocalMappingDemo seeds a map from the initializer's result and lets
// the local mapper process a handful of synthetic follow-on keyframes in
// the background, to exercise culling, creation, fusion, and keyframe
// culling end to end. A real system would feed it keyframes selected by
// tracking; here jittered copies of the same points stand in.
func runLocalMappingDemo(cfg config.Config, recon *initializer.Reconstruction) {
	m := slammap.NewMap()
	k := cfg.Camera.Intrinsics()

	refPose := geometry.IdentityPose()
	nPoints := len(recon.Points)
	refObs := make([]geometry.Point2, nPoints)
	for i, x := range recon.Points {
		if !recon.PointValid[i] {
			continue
		}
		refObs[i] = projectPoint(k, refPose, x)
	}
	kf0 := m.AddKeyFrame(refPose, refObs, nil)
	for i, x := range recon.Points {
		if !recon.PointValid[i] {
			continue
		}
		m.AddMapPoint(x, kf0, i)
	}

	logger, err := xlog.NewDevelopment()
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	lmCfg := localmapper.Config{
		Intrinsics:              k,
		QueueSize:               cfg.Mapping.QueueSize,
		CovisibilityMinShared:   cfg.Mapping.CovisibilityMinShared,
		MinFoundRatio:           cfg.Mapping.MinFoundRatio,
		ProbationKeyFrames:      cfg.Mapping.ProbationKeyFrames,
		NumNeighborsForCreation: cfg.Mapping.NumNeighborsForCreation,
		LineOverlapThreshold:    cfg.Mapping.LineOverlapThreshold,
		RedundancyRatio:         cfg.Mapping.RedundancyRatio,
		RedundancyMinObservers:  cfg.Mapping.RedundancyMinObservers,
	}
	mapper := localmapper.NewLocalMapper(m, stubMatcher{}, nil, nil, nil, lmCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mapper.Run(ctx)

	rng := rand.New(rand.NewSource(1))
	bar := progressbar.NewOptions(5,
		progressbar.OptionSetDescription("mapping"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	for i := 0; i < 5; i++ {
		pose := geometry.Pose{R: refPose.R, T: [3]float64{float64(i+1) * 0.1, 0, 0}}
		obs := make([]geometry.Point2, nPoints)
		for j, x := range recon.Points {
			if !recon.PointValid[j] {
				continue
			}
			jittered := geometry.Point3{X: x.X + rng.NormFloat64()*0.001, Y: x.Y + rng.NormFloat64()*0.001, Z: x.Z}
			obs[j] = projectPoint(k, pose, jittered)
		}
		kf := m.AddKeyFrame(pose, obs, nil)
		mapper.InsertKeyFrame(kf)
		_ = bar.Add(1)
	}

	time.Sleep(200 * time.Millisecond) // let the background queue drain before reporting
	fmt.Printf("map now has %d keyframes and %d points\n", m.KeyFrameCount(), m.MapPointCount())
}

func projectPoint(k geometry.CameraIntrinsics, pose geometry.Pose, x geometry.Point3) geometry.Point2 {
	cam := pose.Apply(x)
	return geometry.Point2{X: k.Fx*cam.X/cam.Z + k.Cx, Y: k.Fy*cam.Y/cam.Z + k.Cy}
}

func countValid(valid []bool) int {
	n := 0
	for _, v := range valid {
		if v {
			n++
		}
	}
	return n
}

// loadFirstTwoFrames reads the first two images (sorted by filename)
// from dir as grayscale Mats.
func loadFirstTwoFrames(dir string) (frame1, frame2 gocv.Mat, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return gocv.Mat{}, gocv.Mat{}, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) < 2 {
		return gocv.Mat{}, gocv.Mat{}, fmt.Errorf("need at least 2 frames in %s, found %d", dir, len(names))
	}

	frame1 = gocv.IMRead(filepath.Join(dir, names[0]), gocv.IMReadGrayScale)
	frame2 = gocv.IMRead(filepath.Join(dir, names[1]), gocv.IMReadGrayScale)
	if frame1.Empty() || frame2.Empty() {
		return gocv.Mat{}, gocv.Mat{}, fmt.Errorf("failed to decode frames in %s", dir)
	}
	return frame1, frame2, nil
}

// orbCorrespondences detects ORB keypoints in both frames, matches their
// descriptors by Hamming distance, and returns the matched pixel
// coordinates sorted by ascending descriptor distance (index i of p1
// corresponds to index i of p2).
func orbCorrespondences(frame1, frame2 gocv.Mat) (p1, p2 []geometry.Point2, err error) {
	orb := gocv.NewORB()
	defer orb.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	kp1, desc1 := orb.DetectAndCompute(frame1, mask)
	kp2, desc2 := orb.DetectAndCompute(frame2, mask)
	defer desc1.Close()
	defer desc2.Close()

	if desc1.Empty() || desc2.Empty() {
		return nil, nil, fmt.Errorf("no ORB descriptors found in one of the frames")
	}

	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, true)
	defer matcher.Close()

	dmatches := matcher.Match(desc1, desc2)
	sort.Slice(dmatches, func(i, j int) bool { return dmatches[i].Distance < dmatches[j].Distance })

	for _, dm := range dmatches {
		if dm.QueryIdx < 0 || dm.QueryIdx >= len(kp1) || dm.TrainIdx < 0 || dm.TrainIdx >= len(kp2) {
			continue
		}
		a := kp1[dm.QueryIdx]
		b := kp2[dm.TrainIdx]
		p1 = append(p1, geometry.Point2{X: a.X, Y: a.Y})
		p2 = append(p2, geometry.Point2{X: b.X, Y: b.Y})
	}
	return p1, p2, nil
}

func terminalWidth() (int, int) {
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		return w, h
	}
	return 80, 24
}

func centerBanner(text string, width int) string {
	if width <= len(text) {
		return text
	}
	pad := (width - len(text)) / 2
	out := ""
	for i := 0; i < pad; i++ {
		out += " "
	}
	return out + text
}

// stubMatcher is the cheapest FeatureMatcher that satisfies the local
// mapper's demands without doing real descriptor matching: it proposes
// no new triangulations or fusions. Wiring a full ORB-based matcher here
// would duplicate orbCorrespondences' per-frame logic across arbitrary
// keyframe pairs and is out of scope for this demo.
type stubMatcher struct{}

func (stubMatcher) SearchForTriangulation(kf1, kf2 *slammap.KeyFrame, f12 [3][3]float64) []localmapper.PointCorrespondence {
	return nil
}
func (stubMatcher) SearchForLineTriangulation(kf1, kf2 *slammap.KeyFrame) []localmapper.LineCorrespondence {
	return nil
}
func (stubMatcher) ProjectForFusion(kf *slammap.KeyFrame, candidates []*slammap.MapPoint) []localmapper.FuseCandidate {
	return nil
}
