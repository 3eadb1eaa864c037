// Package matchersim is a local, Postgres+pgvector-backed reference
// implementation of the clothing-similarity HTTP contract, for
// development and integration tests. It is never on the production call
// path — the server process talks to the real matcher over HTTP via
// internal/matchclient.
package matchersim

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	inputW   = 128
	inputH   = 256
	embedDim = 256
)

// Embedder extracts an appearance feature vector from a person crop,
// same pre-allocated input/output tensor, single session.Run() idiom
// the face embedder in this codebase uses, with a crop-shaped input and
// a clothing-appearance model instead of a face model.
type Embedder struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func NewEmbedder(modelPath string) (*Embedder, error) {
	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(embedDim))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"},
		[]string{"embedding"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create embedder session: %w", err)
	}

	return &Embedder{session: session, inputTensor: inputTensor, outputTensor: outputTensor}, nil
}

// Extract returns a normalized embedDim-dimensional appearance feature
// for img.
func (e *Embedder) Extract(img image.Image) ([]float32, error) {
	data := resizeCHW(img, inputW, inputH)
	copy(e.inputTensor.GetData(), data)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run embedding: %w", err)
	}

	out := e.outputTensor.GetData()
	embedding := make([]float32, embedDim)
	copy(embedding, out)
	normalize(embedding)
	return embedding, nil
}

func (e *Embedder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
	}
}

func resizeCHW(img image.Image, w, h int) []float32 {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	plane := w * h
	out := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		srcY := bounds.Min.Y + y*srcH/h
		for x := 0; x < w; x++ {
			srcX := bounds.Min.X + x*srcW/w
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			idx := y*w + x
			out[idx] = float32(r>>8) / 255
			out[plane+idx] = float32(g>>8) / 255
			out[2*plane+idx] = float32(b>>8) / 255
		}
	}
	return out
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}
