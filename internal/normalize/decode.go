package normalize

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names accepted in Registry and SourceSchema candidate lists.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF16   = "utf-16"
	EncodingBig5    = "big5" // WHATWG Big5, a superset of cp950
	EncodingGB18030 = "gb18030"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts data to UTF-8 using the first candidate that yields valid
// text without replacement characters. It returns the text and the encoding used.
func Decode(data []byte, candidates []string) (string, string, error) {
	var tried []string
	for _, name := range candidates {
		name = strings.ToLower(strings.TrimSpace(name))
		tried = append(tried, name)

		text, ok := decodeAs(data, name)
		if ok {
			return text, name, nil
		}
	}
	return "", "", &EncodingError{Tried: tried}
}

func decodeAs(data []byte, name string) (string, bool) {
	var out []byte
	switch name {
	case EncodingUTF8:
		out = bytes.TrimPrefix(data, utf8BOM)
	case EncodingUTF16:
		// Only attempt UTF-16 when a byte order mark announces it.
		if !bytes.HasPrefix(data, []byte{0xFF, 0xFE}) && !bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
			return "", false
		}
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		b, err := transformBytes(dec, data)
		if err != nil {
			return "", false
		}
		out = b
	case EncodingBig5:
		b, err := transformBytes(traditionalchinese.Big5.NewDecoder(), data)
		if err != nil {
			return "", false
		}
		out = b
	case EncodingGB18030:
		b, err := transformBytes(simplifiedchinese.GB18030.NewDecoder(), data)
		if err != nil {
			return "", false
		}
		out = b
	default:
		return "", false
	}

	if !utf8.Valid(out) || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

func transformBytes(dec *encoding.Decoder, data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	return out, nil
}
