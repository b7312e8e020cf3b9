package dataprocessing

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decoded is the text form of an uploaded file.
type Decoded struct {
	Text     string
	Encoding string
}

// Decode turns raw bytes into text. Valid UTF-8 is used as is (without a
// leading BOM); anything else is decoded once with the fallback charset.
// The result must look like text: NUL and C0 control characters other than
// tab, CR and LF are rejected.
func Decode(data []byte, fallback string) (*Decoded, error) {
	if utf8.Valid(data) {
		text := string(bytes.TrimPrefix(data, utf8BOM))
		if reason := binaryReason(text, false); reason != "" {
			return nil, decodingError(data, reason, "utf-8")
		}
		return &Decoded{Text: text, Encoding: "utf-8"}, nil
	}

	enc, err := fallbackEncoding(fallback)
	if err != nil {
		return nil, err
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, decodingError(data, err.Error(), "utf-8", fallback)
	}
	text := string(decoded)
	if reason := binaryReason(text, true); reason != "" {
		return nil, decodingError(data, reason, "utf-8", fallback)
	}
	return &Decoded{Text: text, Encoding: fallback}, nil
}

func fallbackEncoding(name string) (encoding.Encoding, error) {
	switch name {
	case EncodingLatin1, "":
		return charmap.ISO8859_1, nil
	case EncodingWindows1252:
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("%w: unsupported fallback encoding %q", ErrInvalidOptions, name)
	}
}

func binaryReason(text string, rejectReplacement bool) string {
	for i, r := range text {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r < 0x20:
			return fmt.Sprintf("control character %U at byte %d", r, i)
		case rejectReplacement && r == utf8.RuneError:
			return fmt.Sprintf("undecodable byte at offset %d", i)
		}
	}
	return ""
}

func decodingError(data []byte, reason string, attempted ...string) *DecodingError {
	return &DecodingError{
		Attempted: attempted,
		Detected:  detectCharset(data),
		Reason:    reason,
	}
}

// detectCharset returns the detector's best guess, or "" when it is unsure.
func detectCharset(data []byte) string {
	peek := data
	if len(peek) > 4096 {
		peek = peek[:4096]
	}
	res, err := chardet.NewTextDetector().DetectBest(peek)
	if err != nil || res == nil || res.Confidence < 30 {
		return ""
	}
	return res.Charset
}
