package scanner

import (
	"fmt"
	"image"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ZXingDecoder reads QR codes and the retail and logistics 1D symbologies
// (EAN-13, EAN-8, UPC-A, UPC-E, Code 128).
type ZXingDecoder struct {
	mu      sync.Mutex
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
}

// NewZXingDecoder creates a decoder. It is safe for concurrent use.
func NewZXingDecoder() *ZXingDecoder {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	return &ZXingDecoder{
		readers: []gozxing.Reader{
			qrcode.NewQRCodeReader(),
			oned.NewMultiFormatUPCEANReader(hints),
			oned.NewCode128Reader(),
		},
		hints: hints,
	}
}

// Decode implements Decoder.
func (d *ZXingDecoder) Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarizing frame: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.readers {
		res, err := r.Decode(bmp, d.hints)
		if err == nil && res.GetText() != "" {
			return res.GetText(), nil
		}
		r.Reset()
	}
	return "", ErrNoCode
}
