package vision

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// ToImage converts a [C,H,W] tensor with values in [0,1] to an image.
// One channel renders as grayscale, three as RGB.
func ToImage(t *tensor.Tensor) (image.Image, error) {
	if len(t.Shape) != 3 {
		return nil, fmt.Errorf("to image: requires [C,H,W], got %v", t.Shape)
	}
	c, h, w := t.Shape[0], t.Shape[1], t.Shape[2]
	if c != 1 && c != 3 {
		return nil, fmt.Errorf("to image: unsupported channel count %d", c)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			var r, g, b uint8
			if c == 1 {
				v := toByte(t.Data[idx])
				r, g, b = v, v, v
			} else {
				r = toByte(t.Data[idx])
				g = toByte(t.Data[plane+idx])
				b = toByte(t.Data[2*plane+idx])
			}
			base := img.PixOffset(x, y)
			img.Pix[base] = r
			img.Pix[base+1] = g
			img.Pix[base+2] = b
			img.Pix[base+3] = 0xFF
		}
	}
	return img, nil
}

func toByte(v float32) uint8 {
	v = clamp01(v)
	return uint8(v*255 + 0.5)
}

// SaveImage writes a [C,H,W] tensor with values in [0,1] to disk; the
// encoding follows the file extension (.png default, .jpg/.jpeg supported).
func SaveImage(t *tensor.Tensor, path string) error {
	img, err := ToImage(t)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	default:
		return png.Encode(f, img)
	}
}

// DecodeImage reads a PNG or JPEG stream into a [C,H,W] tensor normalized
// to [-1,1], which is the numeric range networks train on.
func DecodeImage(r io.Reader, device tensor.DeviceType) (*tensor.Tensor, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	t, err := tensor.Zeros([]int{3, h, w}, tensor.Float32, device)
	if err != nil {
		return nil, err
	}
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r16, g16, b16, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := y*w + x
			t.Data[idx] = float32(r16)/32767.5 - 1
			t.Data[plane+idx] = float32(g16)/32767.5 - 1
			t.Data[2*plane+idx] = float32(b16)/32767.5 - 1
		}
	}
	return t, nil
}
