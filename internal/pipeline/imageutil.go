package pipeline

import (
	"image"
	"image/color"

	"github.com/your-org/tracepipe/internal/models"
)

// rgbImage adapts a raw row-major RGB byte buffer to image.Image without
// copying.
type rgbImage struct {
	pix           []byte
	width, height int
}

func (m *rgbImage) ColorModel() color.Model { return color.RGBAModel }
func (m *rgbImage) Bounds() image.Rectangle { return image.Rect(0, 0, m.width, m.height) }
func (m *rgbImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return color.RGBA{}
	}
	i := (y*m.width + x) * 3
	return color.RGBA{R: m.pix[i], G: m.pix[i+1], B: m.pix[i+2], A: 255}
}

// FrameImage wraps a Frame's pixel buffer as an image.Image for JPEG
// encoding and cropping.
func FrameImage(f *models.Frame) image.Image {
	return &rgbImage{pix: f.Pixels, width: f.Width, height: f.Height}
}

// CropImage wraps a Crop's pixel buffer as an image.Image.
func CropImage(c *models.Crop) image.Image {
	return &rgbImage{pix: c.Pixels, width: c.Width, height: c.Height}
}
