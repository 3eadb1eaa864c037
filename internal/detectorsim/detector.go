// Package detectorsim is a local, ONNX-backed reference implementation
// of the person-detection HTTP contract, for development and
// integration tests that don't have the external detection service
// available. It is never on the production call path — tracepipe's
// server process talks to the real service over HTTP via
// internal/detectclient.
package detectorsim

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/tracepipe/internal/models"
)

const (
	inputSize       = 640
	maxDetections   = 300
	valuesPerRow    = 6 // x1, y1, x2, y2, confidence, class_id
	personClassID   = 0
)

// Detector runs a person-detection ONNX model exported with NMS baked
// in: one output row per surviving detection, already sorted by
// confidence. This mirrors the pre-allocated input/output tensor,
// single session.Run() idiom the face detector in this codebase was
// built around, generalized from an anchor-decode RetinaFace model to
// a post-NMS detector export.
type Detector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func NewDetector(modelPath string) (*Detector, error) {
	inputShape := ort.NewShape(1, 3, int64(inputSize), int64(inputSize))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(int64(maxDetections), int64(valuesPerRow))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"images"},
		[]string{"output"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &Detector{session: session, inputTensor: inputTensor, outputTensor: outputTensor}, nil
}

// Detect runs the model on img and returns every surviving person
// detection at or above confidence, in model coordinates scaled back
// to img's own bounds.
func (d *Detector) Detect(img image.Image, confidence float64) ([]models.Detection, error) {
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	data := letterbox(img, inputSize)
	copy(d.inputTensor.GetData(), data)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	out := d.outputTensor.GetData()
	scaleX := float64(origW) / float64(inputSize)
	scaleY := float64(origH) / float64(inputSize)

	var detections []models.Detection
	for i := 0; i < maxDetections; i++ {
		row := out[i*valuesPerRow : i*valuesPerRow+valuesPerRow]
		score := float64(row[4])
		classID := int(row[5])
		if score == 0 && row[0] == 0 && row[1] == 0 {
			break // padding rows at the end of a sparse output
		}
		if classID != personClassID || score < confidence {
			continue
		}
		detections = append(detections, models.Detection{
			BBox: models.BBox{
				X1: float64(row[0]) * scaleX,
				Y1: float64(row[1]) * scaleY,
				X2: float64(row[2]) * scaleX,
				Y2: float64(row[3]) * scaleY,
			},
			DetectorConfidence: score,
			Class:              "person",
		})
	}
	return detections, nil
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
}
