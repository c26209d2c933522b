package imaging

import (
	"encoding/base64"
	"strings"

	"github.com/wenyongqd/anniversary/internal/services"
)

// Payload is inline image or document data with its MIME type.
type Payload struct {
	ContentType string
	Data        []byte
}

// Base64 returns the standard base64 encoding of the payload bytes.
func (p Payload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// DataURL renders the payload as data:<mime>;base64,<data>.
func (p Payload) DataURL() string {
	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + p.Base64()
}

// ParseDataURL decodes a base64 data URL back into a payload.
func ParseDataURL(value string) (Payload, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "data:")
	if !ok {
		return Payload{}, services.Wrap(services.ErrInvalidFormat, "imaging", "parse data url", "missing data: scheme", nil)
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return Payload{}, services.Wrap(services.ErrInvalidFormat, "imaging", "parse data url", "missing payload separator", nil)
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return Payload{}, services.Wrap(services.ErrInvalidFormat, "imaging", "parse data url", "only base64 data urls are supported", nil)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, services.Wrap(services.ErrInvalidFormat, "imaging", "parse data url", "decode base64", err)
	}
	return Payload{ContentType: contentType, Data: data}, nil
}
