package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the WebP decoder with image.Decode
)

const (
	// MaxPhotoSize is the maximum accepted upload size (5MB).
	MaxPhotoSize = 5 * 1024 * 1024
	// PhotoMaxDimension bounds the stored photo width and height.
	PhotoMaxDimension = 512
)

// AllowedPhotoTypes maps accepted MIME types to their extension.
var AllowedPhotoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var allowedPhotoExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// ErrUnsupportedPhoto is returned for files that are not JPEG, PNG or WebP.
var ErrUnsupportedPhoto = errors.New("only JPEG, PNG and WebP images are allowed")

// ErrPhotoTooLarge is returned for uploads over MaxPhotoSize.
var ErrPhotoTooLarge = errors.New("photo exceeds 5MB")

// ValidatePhotoType reports whether the declared content type or the filename
// extension is an accepted photo format.
func ValidatePhotoType(contentType, filename string) bool {
	if contentType != "" {
		if _, ok := AllowedPhotoTypes[strings.ToLower(contentType)]; ok {
			return true
		}
	}
	_, ok := allowedPhotoExtensions[strings.ToLower(path.Ext(filename))]
	return ok
}

// ProcessedPhoto is an encoded photo ready for upload.
type ProcessedPhoto struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// ProcessPhoto sniffs, decodes and downscales r to fit PhotoMaxDimension.
// PNG stays PNG to keep transparency; JPEG and WebP are re-encoded as JPEG.
func ProcessPhoto(r io.Reader) (*ProcessedPhoto, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxPhotoSize+1))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if len(raw) > MaxPhotoSize {
		return nil, ErrPhotoTooLarge
	}
	sniffed := http.DetectContentType(raw)
	if _, ok := AllowedPhotoTypes[sniffed]; !ok {
		return nil, ErrUnsupportedPhoto
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedPhoto, err)
	}
	b := img.Bounds()
	if b.Dx() > PhotoMaxDimension || b.Dy() > PhotoMaxDimension {
		img = imaging.Fit(img, PhotoMaxDimension, PhotoMaxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	out := &ProcessedPhoto{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	if format == "png" {
		err = png.Encode(&buf, img)
		out.ContentType, out.Ext = "image/png", ".png"
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
		out.ContentType, out.Ext = "image/jpeg", ".jpg"
	}
	if err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	out.Data = buf.Bytes()
	return out, nil
}
