package message

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeBody decodes base64url body data. Providers emit both padded and
// unpadded forms, so both alphabets are tried.
func DecodeBody(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, nil
	}
	b, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return b, nil
	}
	b, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return nil, fmt.Errorf("decode base64url body: %w", err)
	}
	return b, nil
}

// EncodeBody is the inverse of DecodeBody (unpadded base64url)
func EncodeBody(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
