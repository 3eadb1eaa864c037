package detectorsim

import (
	"image"
)

// letterbox resizes img to size x size using nearest-neighbor sampling
// and writes CHW, RGB, [0,1]-normalized float32 data, matching the
// preprocessing the ONNX person-detection model was exported with.
func letterbox(img image.Image, size int) []float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	out := make([]float32, 3*size*size)
	plane := size * size

	for y := 0; y < size; y++ {
		srcY := bounds.Min.Y + y*h/size
		for x := 0; x < size; x++ {
			srcX := bounds.Min.X + x*w/size
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			idx := y*size + x
			out[idx] = float32(r>>8) / 255
			out[plane+idx] = float32(g>>8) / 255
			out[2*plane+idx] = float32(b>>8) / 255
		}
	}
	return out
}
