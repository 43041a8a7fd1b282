// Package datauri encodes and decodes the data:<mime>;base64,<payload>
// strings every binary payload crosses the HTTP boundary as.
package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformed = errors.New("datauri: malformed data URI")

// URI is a decoded data URI.
type URI struct {
	MIMEType string
	Data     []byte
}

// Encode returns data:<mime>;base64,<payload>.
func Encode(mimeType string, data []byte) string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mimeType) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mimeType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// Parse decodes a base64 data URI. Media-type parameters before the
// base64 marker (e.g. ";codecs=...") are dropped from MIMEType.
func Parse(s string) (URI, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return URI{}, fmt.Errorf("%w: missing data: scheme", ErrMalformed)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return URI{}, fmt.Errorf("%w: missing payload separator", ErrMalformed)
	}
	params := strings.Split(meta, ";")
	if len(params) < 2 || params[len(params)-1] != "base64" {
		return URI{}, fmt.Errorf("%w: only base64 payloads are supported", ErrMalformed)
	}
	mimeType := strings.ToLower(strings.TrimSpace(params[0]))
	if mimeType == "" || !strings.Contains(mimeType, "/") {
		return URI{}, fmt.Errorf("%w: missing MIME type", ErrMalformed)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop the padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return URI{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return URI{MIMEType: mimeType, Data: data}, nil
}

// String re-encodes the URI.
func (u URI) String() string {
	return Encode(u.MIMEType, u.Data)
}

// IsImage reports whether the MIME type is image/*.
func (u URI) IsImage() bool { return strings.HasPrefix(u.MIMEType, "image/") }

// IsVideo reports whether the MIME type is video/*.
func (u URI) IsVideo() bool { return strings.HasPrefix(u.MIMEType, "video/") }

// IsAudio reports whether the MIME type is audio/*.
func (u URI) IsAudio() bool { return strings.HasPrefix(u.MIMEType, "audio/") }
