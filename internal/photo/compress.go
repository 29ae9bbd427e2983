package photo

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	maxDimension   = 1920
	minDimension   = 320
	startQuality   = 85
	minQuality     = 45
	qualityStep    = 10
	dimensionScale = 0.75
)

// Compress returns data unchanged when it already fits in maxBytes.
// Otherwise the image is decoded, rotated upright, downscaled and
// re-encoded as JPEG with decreasing quality and size until it fits.
func Compress(data []byte, mime string, maxBytes int) (string, []byte, error) {
	if len(data) <= maxBytes {
		return mime, data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("decoding image: %w", err)
	}
	if o := orientation(data); o != 1 {
		img = orient(img, o)
	}

	dim := maxDimension
	for dim >= minDimension {
		scaled := fit(img, dim)
		for q := startQuality; q >= minQuality; q -= qualityStep {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: q}); err != nil {
				return "", nil, fmt.Errorf("encoding image: %w", err)
			}
			if buf.Len() <= maxBytes {
				slog.Debug("photo compressed",
					"from", len(data), "to", buf.Len(), "quality", q,
					"width", scaled.Bounds().Dx(), "height", scaled.Bounds().Dy())
				return JPEG, buf.Bytes(), nil
			}
		}
		dim = int(float64(dim) * dimensionScale)
	}

	return "", nil, fmt.Errorf("photo cannot be compressed below %d bytes", maxBytes)
}

// fit scales img so neither side exceeds dim, preserving aspect ratio.
func fit(img image.Image, dim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= dim && h <= dim {
		return img
	}

	scale := float64(dim) / float64(w)
	if sh := float64(dim) / float64(h); sh < scale {
		scale = sh
	}
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// orientation reads the EXIF orientation tag, defaulting to 1.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return o
}

// orient applies an EXIF orientation (2-8) so the image displays upright.
func orient(img image.Image, o int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// dest maps a source pixel to its position in the upright image.
	var dest func(x, y int) (int, int)
	outW, outH := w, h
	switch o {
	case 2:
		dest = func(x, y int) (int, int) { return w - 1 - x, y }
	case 3:
		dest = func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }
	case 4:
		dest = func(x, y int) (int, int) { return x, h - 1 - y }
	case 5:
		outW, outH = h, w
		dest = func(x, y int) (int, int) { return y, x }
	case 6:
		outW, outH = h, w
		dest = func(x, y int) (int, int) { return h - 1 - y, x }
	case 7:
		outW, outH = h, w
		dest = func(x, y int) (int, int) { return h - 1 - y, w - 1 - x }
	case 8:
		outW, outH = h, w
		dest = func(x, y int) (int, int) { return y, w - 1 - x }
	default:
		return img
	}

	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := dest(x, y)
			out.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}
