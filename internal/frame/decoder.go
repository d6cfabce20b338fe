// Package frame decodes caller-supplied encoded frame payloads into
// fixed-size pixel buffers ready for an encoder.
package frame

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"

	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Static errors for frame decoding.
var (
	// ErrEmptyPayload is returned for a zero-byte frame payload.
	ErrEmptyPayload = errors.New("frame: empty payload")
	// ErrDecode is returned when a payload is not a decodable raster image.
	ErrDecode = errors.New("frame: decode failed")
	// ErrInvalidDimensions is returned when the target dimensions are not positive.
	ErrInvalidDimensions = errors.New("frame: width and height must be positive")
)

// Decode turns one base64-encoded frame payload into an RGBA buffer of
// exactly width x height pixels. A leading data-URI header
// ("data:image/png;base64,") is stripped before decoding. Sources with
// mismatched dimensions are scaled bilinearly onto the target canvas.
func Decode(payload string, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, width, height)
	}
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	raw, err := decodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return dst, nil
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// StripDataURI removes a "data:<mime>;base64," prefix when present.
func StripDataURI(payload string) string {
	if !strings.HasPrefix(payload, "data:") {
		return payload
	}
	idx := strings.Index(payload, ",")
	if idx < 0 {
		return payload
	}
	return payload[idx+1:]
}

// decodeBase64 strips any data-URI header and decodes the remaining base64
// text. Padded and unpadded standard encodings are both accepted.
func decodeBase64(payload string) ([]byte, error) {
	s := strings.TrimSpace(StripDataURI(payload))

	raw, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return raw, nil
	}
	if raw, err2 := base64.RawStdEncoding.DecodeString(s); err2 == nil {
		return raw, nil
	}
	return nil, fmt.Errorf("invalid base64: %w", err)
}
