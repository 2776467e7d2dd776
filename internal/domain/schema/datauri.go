package schema

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDataURI is returned for strings that are not base64 data URIs.
var ErrInvalidDataURI = errors.New("invalid data URI")

// DataURI is a decoded base64 data URI.
type DataURI struct {
	MIMEType string
	Data     []byte
}

// EncodeDataURI renders data as "data:<mime>;base64,<payload>".
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI decodes a base64 data URI. Parameters other than the media
// type (e.g. charset) are ignored.
func ParseDataURI(uri string) (DataURI, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURI)
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURI)
	}

	params := strings.Split(meta, ";")
	if params[len(params)-1] != "base64" {
		return DataURI{}, fmt.Errorf("%w: payload is not base64", ErrInvalidDataURI)
	}

	mimeType := params[0]
	if mimeType == "" {
		mimeType = "text/plain"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return DataURI{}, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}

	return DataURI{MIMEType: mimeType, Data: data}, nil
}
