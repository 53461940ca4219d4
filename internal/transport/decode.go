package transport

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// maxDecompressedSize bounds decoded response bodies (compression bomb protection).
const maxDecompressedSize = 64 * 1024 * 1024

// decompress decodes a response body according to its Content-Encoding.
// Unknown encodings are returned as-is.
func decompress(body []byte, contentEncoding string) ([]byte, error) {
	if len(body) == 0 || contentEncoding == "" {
		return body, nil
	}

	// handle "gzip, br" by taking the first
	encoding := strings.ToLower(strings.TrimSpace(strings.Split(contentEncoding, ",")[0]))

	var reader io.Reader
	switch encoding {
	case "", "identity":
		return body, nil
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		reader = zr
	case "deflate":
		// servers disagree on zlib framing; fall back to raw deflate
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer zr.Close()
			reader = zr
		} else {
			fr := flate.NewReader(bytes.NewReader(body))
			defer fr.Close()
			reader = fr
		}
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	default:
		return body, nil
	}

	decoded, err := io.ReadAll(io.LimitReader(reader, maxDecompressedSize+1))
	if err != nil {
		return nil, err
	}
	if len(decoded) > maxDecompressedSize {
		return nil, fmt.Errorf("decoded response exceeds %d bytes", maxDecompressedSize)
	}
	return decoded, nil
}
