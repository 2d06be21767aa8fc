package scanner

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxFrameDimension bounds the width and height of a frame handed to the
// decoder. Larger frames are downscaled.
const MaxFrameDimension = 1280

// MaxFrameSize is the largest accepted encoded frame.
const MaxFrameSize = 4 << 20

var allowedFrameMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// DecodeFrame sniffs, decodes and downscales an uploaded frame.
func DecodeFrame(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	if len(data) > MaxFrameSize {
		return nil, fmt.Errorf("frame too large: %d bytes", len(data))
	}

	// The browser's content type is not trusted.
	detected := http.DetectContentType(data)
	if !allowedFrameMIME[detected] {
		return nil, fmt.Errorf("unsupported frame format: %s", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return downscale(img, MaxFrameDimension), nil
}

// downscale resizes img so neither dimension exceeds maxDim, keeping the
// aspect ratio. Bilinear is enough for decoding.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
