package sessions

import (
	"github.com/skip2/go-qrcode"

	"github.com/groeigesprek/backend/pkg/apperr"
)

// QR code sizes in pixels.
const (
	DefaultQRSize = 512
	MinQRSize     = 128
	MaxQRSize     = 2048
)

// GenerateQRCode renders target as a PNG QR code. size 0 means DefaultQRSize.
func GenerateQRCode(target string, size int) ([]byte, error) {
	if size == 0 {
		size = DefaultQRSize
	}
	if size < MinQRSize || size > MaxQRSize {
		return nil, apperr.Validation("invalid size", apperr.Field("size", "must be between 128 and 2048"))
	}
	qr, err := qrcode.New(target, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return qr.PNG(size)
}
