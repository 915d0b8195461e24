// 2D code reading for photos sent to the bot. The pixel extraction is done by the
// stdlib image decoders, the symbology work by the gozxing port of ZXing - this
// package only glues the two and normalizes the "no code in picture" outcome.
package barcode

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // telegram photos arrive as jpeg
	_ "image/png"  // screenshots of codes are usually png

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	log "github.com/sirupsen/logrus"
)

// Decoder is the barcode decode collaborator of the photo pipeline.
// Decode returns the payload string of the code found in the image bytes.
// An empty string with nil error means the picture is readable but carries
// no decodable code - that is an expected outcome, not an error.
type Decoder interface {
	Decode(raw []byte) (string, error)
}

// QRDecoder decodes QR codes with the gozxing reader.
type QRDecoder struct {
	// TryHarder makes the reader spend more time on skewed / low contrast photos.
	// Camera pictures of printed codes need this more often than not.
	TryHarder bool
}

func (qd QRDecoder) Decode(raw []byte) (string, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to decode image bytes: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to build bitmap from %s image: %w", format, err)
	}
	var hints map[gozxing.DecodeHintType]interface{}
	if qd.TryHarder {
		hints = map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		}
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		// not-found / unreadable-code outcomes are expected, the caller replies
		// "could not be decoded" - only the empty payload travels up
		log.WithFields(log.Fields{
			"format": format,
			"reason": err,
		}).Debug("no decodable code in the photo")
		return "", nil
	}
	return result.GetText(), nil
}
