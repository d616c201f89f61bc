package uninstlog

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Embedded string framing inside a record payload:
//
//	[0]                0xFE
//	[1:5]              int32 LE, minus the byte length of the UTF-16 text
//	[5:5+n]            UTF-16LE text
//	...                other payload bytes, kept as-is
//	[len-1]            0xFF
const (
	stringStartMarker = 0xFE
	stringEndMarker   = 0xFF
	stringPrefixSize  = 5
)

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ExtractString decodes the framed UTF-16 string at the start of data and
// returns it together with the byte length of its encoded text.
func ExtractString(data []byte) (string, int, error) {
	if len(data) < stringPrefixSize+1 {
		return "", 0, fmt.Errorf("%w: payload is %d bytes", ErrMalformedStringFraming, len(data))
	}
	if data[0] != stringStartMarker {
		return "", 0, fmt.Errorf("%w: first byte 0x%x", ErrMalformedStringFraming, data[0])
	}

	size := int32(binary.LittleEndian.Uint32(data[1:stringPrefixSize]))
	if size >= 0 {
		return "", 0, fmt.Errorf("%w: size field %d is not negative", ErrMalformedStringFraming, size)
	}
	n := -int64(size)
	if n%2 != 0 {
		return "", 0, fmt.Errorf("%w: odd string byte length %d", ErrMalformedStringFraming, n)
	}
	// The text may not overlap the closing marker.
	if stringPrefixSize+n > int64(len(data)-1) {
		return "", 0, fmt.Errorf("%w: string of %d bytes overruns %d byte payload", ErrMalformedStringFraming, n, len(data))
	}
	if last := data[len(data)-1]; last != stringEndMarker {
		return "", 0, fmt.Errorf("%w: last byte 0x%x", ErrMalformedStringFraming, last)
	}

	encoded := data[stringPrefixSize : stringPrefixSize+n]
	if err := checkUTF16(encoded); err != nil {
		return "", 0, err
	}
	text, err := utf16LE.NewDecoder().Bytes(encoded)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrMalformedStringFraming, err)
	}
	return string(text), int(n), nil
}

// HasEmbeddedString reports whether data carries a well-formed framed string.
func HasEmbeddedString(data []byte) bool {
	_, _, err := ExtractString(data)
	return err == nil
}

// checkUTF16 rejects unpaired surrogates, which the x/text decoder would
// otherwise silently replace.
func checkUTF16(b []byte) error {
	for i := 0; i < len(b); i += 2 {
		u := rune(binary.LittleEndian.Uint16(b[i:]))
		if !utf16.IsSurrogate(u) {
			continue
		}
		if i+4 <= len(b) {
			next := rune(binary.LittleEndian.Uint16(b[i+2:]))
			if utf16.DecodeRune(u, next) != utf8.RuneError {
				i += 2
				continue
			}
		}
		return fmt.Errorf("%w: unpaired surrogate 0x%x at byte %d", ErrMalformedStringFraming, u, i)
	}
	return nil
}

// Splice returns a new buffer holding buf[:start], seg and buf[end:].
// buf is not modified.
func Splice(buf []byte, start, end int, seg []byte) []byte {
	out := make([]byte, len(buf)-(end-start)+len(seg))
	n := copy(out, buf[:start])
	n += copy(out[n:], seg)
	copy(out[n:], buf[end:])
	return out
}

// EmbeddedString decodes the framed string stored in the record payload.
func (fr *FileRec) EmbeddedString() (string, error) {
	s, _, err := ExtractString(fr.Data)
	return s, err
}

// Rebase replaces the prefix from with to in the record's embedded path.
// A path that does not start with from is left as it is. It reports
// whether the path changed. On error the record is untouched.
func (fr *FileRec) Rebase(from, to string) (bool, error) {
	path, oldSize, err := ExtractString(fr.Data)
	if err != nil {
		return false, err
	}
	changed := false
	if strings.HasPrefix(path, from) {
		if !utf8.ValidString(to) {
			return false, ErrInvalidReplacementValue
		}
		path = to + path[len(from):]
		changed = from != to
	}

	encoded, err := utf16LE.NewEncoder().Bytes([]byte(path))
	if err != nil {
		return false, fmt.Errorf("failed to encode path %q: %w", path, err)
	}
	newSize := len(encoded)
	if newSize > math.MaxInt32 || len(fr.Data)-oldSize+newSize > MaxDataSize {
		return false, fmt.Errorf("%w: rebased string is %d bytes", ErrOversizedPayload, newSize)
	}

	seg := make([]byte, stringPrefixSize+newSize)
	seg[0] = stringStartMarker
	binary.LittleEndian.PutUint32(seg[1:], uint32(-int32(newSize)))
	copy(seg[stringPrefixSize:], encoded)

	fr.Data = Splice(fr.Data, 0, stringPrefixSize+oldSize, seg)
	return changed, nil
}
