package khqr

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderPNGBase64 renders a payload string as a QR code and returns the PNG
// bytes base64-encoded, ready to embed in a JSON response or data URI.
func (g *Generator) RenderPNGBase64(payload string) (string, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, 320)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
