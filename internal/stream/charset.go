package stream

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decode converts a raw chunk to text. In UTF-8 mode an incomplete trailing
// sequence is kept in d.utf8Tail and prepended to the next chunk; invalid
// bytes become U+FFFD. In legacy mode each byte maps to one Latin-1 rune.
func (d *Decoder) decode(chunk []byte) string {
	if !d.utf8 {
		var b strings.Builder
		b.Grow(len(chunk))
		for _, c := range chunk {
			b.WriteRune(charmap.ISO8859_1.DecodeByte(c))
		}
		return b.String()
	}

	src := chunk
	if len(d.utf8Tail) > 0 {
		src = append(d.utf8Tail, chunk...)
		d.utf8Tail = nil
	}
	if len(src) == 0 {
		return ""
	}

	// Each invalid byte expands to a three-byte replacement rune.
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	nDst, nSrc, err := d.utf8Dec.Transform(dst, src, false)
	if err != nil && err != transform.ErrShortSrc {
		d.log.Warn("utf-8 decode: %v", err)
	}
	if nSrc < len(src) {
		d.utf8Tail = append([]byte(nil), src[nSrc:]...)
	}
	return string(dst[:nDst])
}

func newUTF8Decoder() transform.Transformer {
	return unicode.UTF8.NewDecoder()
}
