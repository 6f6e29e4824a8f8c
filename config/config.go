// Package config loads the CLI demo's runtime parameters from an ini
// file, the same way the sequence metadata loader elsewhere in this
// module reads seqinfo.ini: a handful of typed keys under named
// sections. Keys outside [Camera] fall back to Default()'s values via
// MustInt/MustFloat64/MustString when absent; a file that cannot be
// loaded, or one missing a camera intrinsic, is an error.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/vislam/monoslam/geometry"
)

// Config holds everything the slamdemo CLI needs to run the
// initializer and local mapper over an input sequence.
type Config struct {
	Camera   CameraConfig
	Init     InitConfig
	Mapping  MappingConfig
	Input    InputConfig
}

// CameraConfig is the pinhole calibration of the input sequence.
type CameraConfig struct {
	Fx, Fy float64
	Cx, Cy float64
}

// InitConfig mirrors initializer.Config's tunables.
type InitConfig struct {
	NumRANSACIterations int
	ReprojectionSigma   float64
	MinMatches          int
}

// MappingConfig mirrors localmapper.Config's tunables.
type MappingConfig struct {
	QueueSize               int
	CovisibilityMinShared   int
	MinFoundRatio           float64
	ProbationKeyFrames      int
	NumNeighborsForCreation int
	LineOverlapThreshold    float64
	RedundancyRatio         float64
	RedundancyMinObservers  int
}

// InputConfig points at the image sequence to run over.
type InputConfig struct {
	SequencePath string
	OutputPath   string
	MakeVideo    bool
}

// Load reads path as an ini file and fills a Config, falling back to
// Default's values for any absent key outside the [Camera] section. It
// returns an error if the file cannot be loaded, if cx or cy is absent,
// or if fx or fy is absent or zero.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := ini.Load(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load %s: %w", path, err)
	}

	// Camera intrinsics have no sensible default: a wrong focal length
	// silently corrupts every downstream geometric computation, so a
	// missing key here must fail loudly rather than fall back.
	cam := f.Section("Camera")
	cfg.Camera.Fx = cam.Key("fx").MustFloat64(0)
	cfg.Camera.Fy = cam.Key("fy").MustFloat64(0)
	cfg.Camera.Cx = cam.Key("cx").MustFloat64(0)
	cfg.Camera.Cy = cam.Key("cy").MustFloat64(0)

	initS := f.Section("Initializer")
	cfg.Init.NumRANSACIterations = initS.Key("ransacIterations").MustInt(cfg.Init.NumRANSACIterations)
	cfg.Init.ReprojectionSigma = initS.Key("reprojectionSigma").MustFloat64(cfg.Init.ReprojectionSigma)
	cfg.Init.MinMatches = initS.Key("minMatches").MustInt(cfg.Init.MinMatches)

	mapS := f.Section("LocalMapping")
	cfg.Mapping.QueueSize = mapS.Key("queueSize").MustInt(cfg.Mapping.QueueSize)
	cfg.Mapping.CovisibilityMinShared = mapS.Key("covisibilityMinShared").MustInt(cfg.Mapping.CovisibilityMinShared)
	cfg.Mapping.MinFoundRatio = mapS.Key("minFoundRatio").MustFloat64(cfg.Mapping.MinFoundRatio)
	cfg.Mapping.ProbationKeyFrames = mapS.Key("probationKeyFrames").MustInt(cfg.Mapping.ProbationKeyFrames)
	cfg.Mapping.NumNeighborsForCreation = mapS.Key("neighborsForCreation").MustInt(cfg.Mapping.NumNeighborsForCreation)
	cfg.Mapping.LineOverlapThreshold = mapS.Key("lineOverlapThreshold").MustFloat64(cfg.Mapping.LineOverlapThreshold)
	cfg.Mapping.RedundancyRatio = mapS.Key("redundancyRatio").MustFloat64(cfg.Mapping.RedundancyRatio)
	cfg.Mapping.RedundancyMinObservers = mapS.Key("redundancyMinObservers").MustInt(cfg.Mapping.RedundancyMinObservers)

	in := f.Section("Input")
	cfg.Input.SequencePath = in.Key("sequencePath").MustString(cfg.Input.SequencePath)
	cfg.Input.OutputPath = in.Key("outputPath").MustString(cfg.Input.OutputPath)
	cfg.Input.MakeVideo = in.Key("makeVideo").MustBool(cfg.Input.MakeVideo)

	for _, key := range []string{"cx", "cy"} {
		if !cam.HasKey(key) {
			return Config{}, fmt.Errorf("invalid config: missing camera key %s in %s", key, path)
		}
	}
	if cfg.Camera.Fx == 0 || cfg.Camera.Fy == 0 {
		return Config{}, fmt.Errorf("invalid config: missing camera focal length in %s", path)
	}
	return cfg, nil
}

// Default returns a Config with reasonable values for a quick demo run,
// used both as Load's fallback for missing keys and standalone when no
// ini file is supplied at all.
func Default() Config {
	return Config{
		Camera: CameraConfig{Fx: 500, Fy: 500, Cx: 320, Cy: 240},
		Init: InitConfig{
			NumRANSACIterations: 200,
			ReprojectionSigma:   1.0,
			MinMatches:          100,
		},
		Mapping: MappingConfig{
			QueueSize:               64,
			CovisibilityMinShared:   15,
			MinFoundRatio:           0.25,
			ProbationKeyFrames:      3,
			NumNeighborsForCreation: 10,
			LineOverlapThreshold:    0.5,
			RedundancyRatio:         0.9,
			RedundancyMinObservers:  3,
		},
		Input: InputConfig{
			OutputPath: ".",
		},
	}
}

// Intrinsics converts the camera section into a geometry.CameraIntrinsics.
func (c CameraConfig) Intrinsics() geometry.CameraIntrinsics {
	return geometry.NewCameraIntrinsics(c.Fx, c.Fy, c.Cx, c.Cy)
}
