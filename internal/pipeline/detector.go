package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/ironfathom/stationctl/internal/models"
	"github.com/ironfathom/stationctl/internal/state"
)

const (
	yoloInputSize       = 640
	detectionConfidence = 0.45
)

var cocoClassNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train",
	"truck", "boat",
}

// decodeYOLOOutput turns a YOLOv8-ONNX forward pass's output tensor
// (shape [1, 4+numClasses, numBoxes], center-x/center-y/w/h in the
// 640x640 input space followed by one score row per class) into
// Detection boxes rescaled into the frame's own pixel space.
func decodeYOLOOutput(output gocv.Mat, frameW, frameH int) []models.Detection {
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil
	}
	numAttrs := sizes[1]
	numBoxes := sizes[2]
	numClasses := numAttrs - 4
	if numClasses <= 0 {
		return nil
	}

	scaleX := float64(frameW) / float64(yoloInputSize)
	scaleY := float64(frameH) / float64(yoloInputSize)

	var detections []models.Detection
	for i := 0; i < numBoxes; i++ {
		bestScore := 0.0
		bestClass := -1
		for c := 0; c < numClasses; c++ {
			score := float64(output.GetFloatAt3(0, 4+c, i))
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < detectionConfidence {
			continue
		}

		cx := float64(output.GetFloatAt3(0, 0, i))
		cy := float64(output.GetFloatAt3(0, 1, i))
		w := float64(output.GetFloatAt3(0, 2, i))
		h := float64(output.GetFloatAt3(0, 3, i))

		box := state.RectPx{
			X: (cx - w/2) * scaleX,
			Y: (cy - h/2) * scaleY,
			W: w * scaleX,
			H: h * scaleY,
		}

		detections = append(detections, models.Detection{
			ClassID:    bestClass,
			ClassName:  className(bestClass),
			Confidence: bestScore,
			Box:        box,
		})
	}

	return detections
}

func className(id int) string {
	if id >= 0 && id < len(cocoClassNames) {
		return cocoClassNames[id]
	}
	return "unknown"
}
