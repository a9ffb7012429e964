package smobilpay

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"strings"
)

// toBytes decodes the provided value to bytes
func toBytes(in interface{}) (out []byte, err error) {
	switch v := in.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		if out, err = json.Marshal(v); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// rawURLEncode percent-encodes s as described by RFC 3986, spaces become %20 instead of +.
func rawURLEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func bytesReader(b []byte) io.Reader {
	if b == nil {
		return nil
	}
	return bytes.NewReader(b)
}
