// Package pipeline runs one camera's capture/tracker/detector worker:
// a dedicated goroutine that pulls decoded frames, runs a correlation
// tracker keyed off the cached tracking phase, optionally runs an
// object detector, and emits a models.FrameData record per frame.
package pipeline

import (
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/ironfathom/stationctl/internal/device"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/models"
	"github.com/ironfathom/stationctl/internal/state"
)

const (
	workingWidthPx  = 1024
	workingHeightPx = 768
)

// CropInsets describes the fixed capture/crop rectangle this camera
// reads before scaling to the working size.
type CropInsets struct {
	Left, Top, Right, Bottom int
}

// CameraPipeline owns one camera's capture device, tracker, and
// (optional) detector. It runs entirely on its own goroutine; the only
// cross-thread call it makes into the state model is
// UpdateTrackingResult, which the model itself treats as a no-op when
// this pipeline is not the active camera.
type CameraPipeline struct {
	IsDay      bool
	cropInsets CropInsets

	model *state.Model
	lrf   *device.LRF
	log   logger.Logger

	capture            *gocv.VideoCapture
	tracker            gocv.TrackerKCF
	trackerInitialized bool

	detector    *gocv.Net
	detectEvery int
	frameCount  int

	abort chan struct{}
	out   chan models.FrameData
}

// NewCameraPipeline constructs a pipeline for one camera. detectorPath
// may be empty to disable the YOLOv8-ONNX detector for this camera.
func NewCameraPipeline(isDay bool, deviceIndex int, insets CropInsets, detectorPath string, model *state.Model, lrf *device.LRF, log logger.Logger) (*CameraPipeline, error) {
	name := "pipeline.night_camera"
	if isDay {
		name = "pipeline.day_camera"
	}

	p := &CameraPipeline{
		IsDay:       isDay,
		cropInsets:  insets,
		model:       model,
		lrf:         lrf,
		log:         log.WithPrefix(name),
		detectEvery: 3,
		abort:       make(chan struct{}),
		out:         make(chan models.FrameData, 4),
	}

	capture, err := gocv.OpenVideoCaptureWithAPI(deviceIndex, gocv.VideoCaptureV4L2)
	if err != nil {
		return nil, err
	}
	p.capture = capture

	if detectorPath != "" {
		net := gocv.ReadNetFromONNX(detectorPath)
		p.detector = &net
	}

	return p, nil
}

// Frames returns the channel FrameData records are emitted on.
func (p *CameraPipeline) Frames() <-chan models.FrameData { return p.out }

// Run is the pipeline's per-frame loop; call it on its own goroutine.
// It exits when Stop is called, releasing the tracker, detector, and
// capture handle in reverse acquisition order.
func (p *CameraPipeline) Run() {
	defer p.release()

	raw := gocv.NewMat()
	defer raw.Close()

	for {
		select {
		case <-p.abort:
			return
		default:
		}

		if ok := p.capture.Read(&raw); !ok || raw.Empty() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		working := p.cropAndScale(raw)
		snap := p.model.Snapshot()

		var detections []models.Detection
		if p.detector != nil {
			p.frameCount++
			if p.frameCount%p.detectEvery == 0 {
				detections = p.runDetector(working)
			}
		}

		bboxValid, bbox, raw2 := p.runTrackerForPhase(working, snap)

		// UpdateTrackingResult no-ops on its own when this pipeline isn't
		// the active camera, so no isolation check is needed here.
		center := state.PointPx{X: bbox.X + bbox.W/2, Y: bbox.Y + bbox.H/2}
		size := state.SizePx{W: bbox.W, H: bbox.H}
		p.model.UpdateTrackingResult(p.IsDay, bboxValid, center, size, state.Vector2{}, raw2)

		var lrfDistance float64
		if p.lrf != nil {
			lrfDistance = p.lrf.LastRangeM()
		}

		fd := models.BuildFrameData(snap, p.IsDay, bboxValid, bbox, raw2, detections, lrfDistance)
		select {
		case p.out <- fd:
		default:
		}

		working.Close()
	}
}

// Stop signals the loop to exit on its next per-frame check.
func (p *CameraPipeline) Stop() { close(p.abort) }

func (p *CameraPipeline) release() {
	if p.trackerInitialized {
		p.tracker.Close()
	}
	if p.detector != nil {
		p.detector.Close()
	}
	if p.capture != nil {
		p.capture.Close()
	}
	close(p.out)
}

func (p *CameraPipeline) cropAndScale(frame gocv.Mat) gocv.Mat {
	w, h := frame.Cols(), frame.Rows()
	x0, y0 := p.cropInsets.Left, p.cropInsets.Top
	x1, y1 := w-p.cropInsets.Right, h-p.cropInsets.Bottom
	if x1 <= x0 || y1 <= y0 {
		x0, y0, x1, y1 = 0, 0, w, h
	}

	rect := gocv.NewRect(x0, y0, x1-x0, y1-y0)
	cropped := frame.Region(rect)
	defer cropped.Close()

	scaled := gocv.NewMat()
	gocv.Resize(cropped, &scaled, image.Pt(workingWidthPx, workingHeightPx), 0, 0, gocv.InterpolationLinear)
	return scaled
}

// runTrackerForPhase implements the phase branch of the per-frame
// sequence: Off/Acquisition skip the tracker and reset it; LockPending
// initialises it fresh against the acquisition box; ActiveLock/Coast/
// Firing run one localise cycle on the existing tracker.
func (p *CameraPipeline) runTrackerForPhase(frame gocv.Mat, snap state.SystemState) (bool, state.RectPx, state.TrackerRawState) {
	switch snap.Tracking.Phase {
	case state.TrackingOff, state.TrackingAcquisition:
		if p.trackerInitialized {
			p.tracker.Close()
			p.trackerInitialized = false
		}
		return false, state.RectPx{}, state.TrackerNew

	case state.TrackingLockPending:
		if !p.trackerInitialized {
			box := snap.Tracking.AcquisitionBox
			p.tracker = gocv.NewTrackerKCF()
			p.tracker.Init(frame, gocv.NewRect(int(box.X), int(box.Y), int(box.W), int(box.H)))
			p.trackerInitialized = true
			p.log.Infof("tracker initialised for session %s", snap.Tracking.SessionID)
		}
		return p.localise(frame)

	default: // ActiveLock, Coast, Firing
		if !p.trackerInitialized {
			return false, state.RectPx{}, state.TrackerLost
		}
		return p.localise(frame)
	}
}

func (p *CameraPipeline) localise(frame gocv.Mat) (bool, state.RectPx, state.TrackerRawState) {
	rect, ok := p.tracker.Update(frame)
	if !ok || rect.Dx() <= 0 || rect.Dy() <= 0 ||
		rect.Min.X < 0 || rect.Min.Y < 0 ||
		rect.Max.X > frame.Cols() || rect.Max.Y > frame.Rows() {
		return false, state.RectPx{}, state.TrackerLost
	}
	return true, state.RectPx{
		X: float64(rect.Min.X), Y: float64(rect.Min.Y),
		W: float64(rect.Dx()), H: float64(rect.Dy()),
	}, state.TrackerTracked
}

func (p *CameraPipeline) runDetector(frame gocv.Mat) []models.Detection {
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(yoloInputSize, yoloInputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	p.detector.SetInput(blob, "")
	output := p.detector.Forward("")
	defer output.Close()

	return decodeYOLOOutput(output, frame.Cols(), frame.Rows())
}
