// Package inline encodes blobs so that they can be embedded inside plain-text documents.
//
// The encoding keeps printable ASCII as is and escapes everything else with a
// tilde lead byte:
//
//	~i  tilde itself
//	~n  NUL
//	~r  carriage return
//	~l  line feed
//	~s  space
//	~t  tab
//	~d  dot
//	~c  colon
//	~xHH  any other byte, as two hexadecimal digits
//
// Encoded text never contains whitespace, so raw line breaks may be inserted
// anywhere between escape sequences: the decoder ignores them and an encoded
// block may span several lines.
//
// Content addresses used as file names in the blob store do not use this
// encoding.
package inline

import (
	"bufio"
	"io"

	"github.com/paninifs/panini/pkg/errors"
)

const escape = '~'

// ErrBadEscape is returned when decoding text which was not produced by Encode
var ErrBadEscape = errors.New("invalid inline escape sequence")

var (
	shortCodes = map[byte]byte{
		'~':  'i',
		0x00: 'n',
		'\r': 'r',
		'\n': 'l',
		' ':  's',
		'\t': 't',
		'.':  'd',
		':':  'c',
	}
	reverseCodes map[byte]byte
)

const hexDigits = "0123456789abcdef"

func init() {
	reverseCodes = make(map[byte]byte, len(shortCodes))
	for b, code := range shortCodes {
		reverseCodes[code] = b
	}
}

func isPlain(b byte) bool {
	if b < 0x21 || b > 0x7e {
		return false
	}
	_, escaped := shortCodes[b]
	return !escaped
}

// appendByte appends the encoded form of a single byte
func appendByte(dst []byte, b byte) []byte {
	if isPlain(b) {
		return append(dst, b)
	}
	if code, ok := shortCodes[b]; ok {
		return append(dst, escape, code)
	}
	return append(dst, escape, 'x', hexDigits[b>>4], hexDigits[b&0x0f])
}

// AppendEncode appends the encoded form of src to dst
func AppendEncode(dst, src []byte) []byte {
	for _, b := range src {
		dst = appendByte(dst, b)
	}
	return dst
}

// Encode returns the text form of a byte sequence
func Encode(src []byte) string {
	return string(AppendEncode(make([]byte, 0, len(src)+len(src)/4), src))
}

// EncodeLines writes the encoded form of src to w, breaking lines after at most width characters.
//
// Escape sequences are never split across lines. A width smaller than 4 is raised to 4,
// the length of the longest escape sequence.
func EncodeLines(w io.Writer, src []byte, width int) error {
	if width < 4 {
		width = 4
	}
	bw := bufio.NewWriter(w)
	col := 0
	var seq []byte
	for _, b := range src {
		seq = appendByte(seq[:0], b)
		if col+len(seq) > width {
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
			col = 0
		}
		if _, err := bw.Write(seq); err != nil {
			return err
		}
		col += len(seq)
	}
	if col > 0 {
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// Decode converts some encoded text back to the original bytes
func Decode(text string) ([]byte, error) {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\r' || c == '\n':
			// soft line break
			continue
		case c == escape:
			if i+1 >= len(text) {
				return nil, ErrBadEscape.WrapMessage("truncated escape at offset %d", i)
			}
			code := text[i+1]
			if code == 'x' {
				if i+3 >= len(text) {
					return nil, ErrBadEscape.WrapMessage("truncated hex escape at offset %d", i)
				}
				hi, ok1 := unhex(text[i+2])
				lo, ok2 := unhex(text[i+3])
				if !ok1 || !ok2 {
					return nil, ErrBadEscape.WrapMessage("invalid hex escape %q at offset %d", text[i:i+4], i)
				}
				out = append(out, hi<<4|lo)
				i += 3
				continue
			}
			b, ok := reverseCodes[code]
			if !ok {
				return nil, ErrBadEscape.WrapMessage("unknown escape code %q at offset %d", code, i)
			}
			out = append(out, b)
			i++
		case isPlain(c):
			out = append(out, c)
		default:
			return nil, ErrBadEscape.WrapMessage("unexpected raw byte 0x%02x at offset %d", c, i)
		}
	}
	return out, nil
}
