package qr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Encoder renders admission payloads into scannable QR images. The output is
// a PNG data URL so clients and mail templates can embed it directly.
type Encoder struct {
	size int
}

// NewEncoder returns an encoder producing images of the given pixel size.
func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = 256
	}
	return &Encoder{size: size}
}

// Encode marshals the payload to JSON and returns a PNG data URL.
func (e *Encoder) Encode(payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal qr payload: %w", err)
	}
	png, err := qrcode.Encode(string(data), qrcode.Medium, e.size)
	if err != nil {
		return "", fmt.Errorf("encode qr image: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
