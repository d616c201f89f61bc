package uninstlog

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractString(t *testing.T) {
	tests := []struct {
		name string
		text string
		tail []byte
	}{
		{"ascii path", `C:\OldApp\bin`, nil},
		{"with trailing fields", `C:\OldApp\bin\app.exe`, []byte{0, 1, 2, 3, 0xFE}},
		{"latin and cjk", `D:\Programme\Übersetzer\翻訳`, nil},
		{"surrogate pair", "C:\\Apps\\\U0001F600", []byte{9}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			text, n, err := ExtractString(framedPayload(tc.text, tc.tail))
			require.NoError(t, err)
			assert.Equal(t, tc.text, text)
			assert.Equal(t, 2*len(utf16.Encode([]rune(tc.text))), n)
		})
	}
}

func TestExtractString_Malformed(t *testing.T) {
	valid := framedPayload(`C:\OldApp`, []byte{7, 7})

	withByte := func(i int, v byte) []byte {
		b := append([]byte(nil), valid...)
		b[i] = v
		return b
	}
	withSize := func(size int32) []byte {
		b := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint32(b[1:], uint32(size))
		return b
	}
	withText := func(units ...uint16) []byte {
		var buf bytes.Buffer
		buf.WriteByte(0xFE)
		binary.Write(&buf, binary.LittleEndian, int32(-2*len(units)))
		binary.Write(&buf, binary.LittleEndian, units)
		buf.WriteByte(0xFF)
		return buf.Bytes()
	}

	// Even-length text running through the final 0xFF.
	coversEndMarker := framedPayload(`C:\OldApp`, []byte{7})
	binary.LittleEndian.PutUint32(coversEndMarker[1:], uint32(-int32(len(coversEndMarker)-5)))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte{0xFE, 0xFE, 0xFF, 0xFF, 0xFF}},
		{"bad first byte", withByte(0, 0xFD)},
		{"bad last byte", withByte(len(valid)-1, 0x00)},
		{"zero size", withSize(0)},
		{"positive size", withSize(18)},
		{"odd size", withSize(-17)},
		{"size overruns payload", withSize(-1000)},
		{"size covers end marker", coversEndMarker},
		{"min int32 size", withSize(-2147483648)},
		{"lone high surrogate", withText('C', 0xD83D, ':')},
		{"lone low surrogate", withText(0xDE00, 'C')},
		{"high surrogate at end", withText('C', 0xD83D)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ExtractString(tc.data)
			assert.ErrorIs(t, err, ErrMalformedStringFraming)
			assert.False(t, HasEmbeddedString(tc.data))
		})
	}
}

func TestRebase(t *testing.T) {
	tail := []byte{0x01, 0x00, 0x00, 0x00, 0xAB, 0xCD}
	old := framedPayload(`C:\OldApp\bin`, tail)
	rec := &FileRec{Type: RecDeleteDirOrFiles, ExtraData: 0x42, Data: old}

	changed, err := rec.Rebase(`C:\OldApp`, `D:\NewApp`)
	require.NoError(t, err)
	assert.True(t, changed)

	text, n, err := ExtractString(rec.Data)
	require.NoError(t, err)
	assert.Equal(t, `D:\NewApp\bin`, text)

	units := len(utf16.Encode([]rune(`D:\NewApp\bin`)))
	assert.Equal(t, 2*units, n)
	assert.Equal(t, int32(-2*units), int32(binary.LittleEndian.Uint32(rec.Data[1:5])))
	assert.Equal(t, byte(0xFE), rec.Data[0])
	assert.Equal(t, append(tail, 0xFF), rec.Data[5+n:])

	assert.Equal(t, RecDeleteDirOrFiles, rec.Type)
	assert.Equal(t, uint32(0x42), rec.ExtraData)
}

func TestRebase_LengthDelta(t *testing.T) {
	u16len := func(s string) int { return len(utf16.Encode([]rune(s))) }
	tail := []byte("opaque trailing fields")

	tests := []struct {
		name, path, from, to string
	}{
		{"grow", `C:\OldApp\bin\x.dll`, `C:\OldApp`, `E:\Applications\Some Much Longer Name`},
		{"shrink", `C:\Program Files (x86)\Vendor\App\x.dll`, `C:\Program Files (x86)\Vendor`, `X:`},
		{"non-bmp target", `C:\OldApp\data`, `C:\OldApp`, "D:\\\U0001F4E6\\App"},
		{"non-bmp source", "C:\\\U0001F4E6\\data", "C:\\\U0001F4E6", `C:\Box`},
		{"whole path", `C:\OldApp`, `C:\OldApp`, `D:\New`},
		{"empty from", `data\file`, ``, `C:\Root\`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			old := framedPayload(tc.path, tail)
			rec := &FileRec{Type: RecDeleteFile, Data: old}

			changed, err := rec.Rebase(tc.from, tc.to)
			require.NoError(t, err)
			assert.True(t, changed)

			want := len(old) + 2*(u16len(tc.to)-u16len(tc.from))
			assert.Equal(t, want, len(rec.Data))

			text, n, err := ExtractString(rec.Data)
			require.NoError(t, err)
			assert.Equal(t, tc.to+tc.path[len(tc.from):], text)

			oldN := 2 * u16len(tc.path)
			assert.Equal(t, old[5+oldN:], rec.Data[5+n:], "bytes after the string must shift unchanged")
		})
	}
}

func TestRebase_NoMatchLeavesPayloadIdentical(t *testing.T) {
	tests := []struct {
		name, path, from string
	}{
		{"other drive", `D:\Elsewhere\bin`, `C:\OldApp`},
		{"case differs", `c:\oldapp\bin`, `C:\OldApp`},
		{"longer than path", `C:\Old`, `C:\OldApp`},
		{"separator differs", `C:/OldApp/bin`, `C:\OldApp`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			old := framedPayload(tc.path, []byte{5, 6, 7})
			rec := &FileRec{Type: RecDeleteFile, Data: append([]byte(nil), old...)}

			changed, err := rec.Rebase(tc.from, `Z:\New`)
			require.NoError(t, err)
			assert.False(t, changed)
			assert.Equal(t, old, rec.Data)
		})
	}
}

func TestRebase_MalformedLeavesRecordUnmodified(t *testing.T) {
	payloads := map[string][]byte{
		"no start marker":   {0x00, 0xFC, 0xFF, 0xFF, 0xFF, 'C', 0, 0xFF},
		"no end marker":     {0xFE, 0xFE, 0xFF, 0xFF, 0xFF, 'C', 0, 0x00},
		"non-negative size": {0xFE, 0x02, 0x00, 0x00, 0x00, 'C', 0, 0xFF},
	}
	for name, data := range payloads {
		t.Run(name, func(t *testing.T) {
			orig := append([]byte(nil), data...)
			rec := &FileRec{Type: RecDeleteFile, ExtraData: 3, Data: data}

			changed, err := rec.Rebase("C", "D")
			assert.ErrorIs(t, err, ErrMalformedStringFraming)
			assert.False(t, changed)
			assert.Equal(t, orig, rec.Data)
			assert.Equal(t, uint32(3), rec.ExtraData)
		})
	}
}

func TestRebase_InvalidReplacement(t *testing.T) {
	old := framedPayload(`C:\OldApp\bin`, nil)
	rec := &FileRec{Type: RecDeleteFile, Data: append([]byte(nil), old...)}

	_, err := rec.Rebase(`C:\OldApp`, "D:\\\xff")
	assert.ErrorIs(t, err, ErrInvalidReplacementValue)
	assert.Equal(t, old, rec.Data)
}

func TestRebase_InvalidReplacementIgnoredWithoutMatch(t *testing.T) {
	old := framedPayload(`D:\Other\bin`, nil)
	rec := &FileRec{Type: RecDeleteFile, Data: append([]byte(nil), old...)}

	changed, err := rec.Rebase(`C:\OldApp`, "X:\\\xff")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, old, rec.Data)
}

func TestRebase_IdentityRuleReportsNoChange(t *testing.T) {
	old := framedPayload(`C:\Same\bin`, []byte{7})
	rec := &FileRec{Type: RecDeleteFile, Data: append([]byte(nil), old...)}

	changed, err := rec.Rebase(`C:\Same`, `C:\Same`)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, old, rec.Data)
}

func TestRebase_Twice(t *testing.T) {
	rec := &FileRec{Type: RecDeleteFile, Data: framedPayload(`C:\OldApp\bin`, []byte{1})}

	changed, err := rec.Rebase(`C:\OldApp`, `D:\NewApp`)
	require.NoError(t, err)
	assert.True(t, changed)
	first := append([]byte(nil), rec.Data...)

	changed, err = rec.Rebase(`C:\OldApp`, `D:\NewApp`)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first, rec.Data)

	path, err := rec.EmbeddedString()
	require.NoError(t, err)
	assert.Equal(t, `D:\NewApp\bin`, path)
}

func TestSplice(t *testing.T) {
	buf := []byte("0123456789")
	orig := append([]byte(nil), buf...)

	assert.Equal(t, []byte("01abcdef6789"), Splice(buf, 2, 6, []byte("abcdef")))
	assert.Equal(t, []byte("01x6789"), Splice(buf, 2, 6, []byte("x")))
	assert.Equal(t, []byte("0123456789"), Splice(buf, 4, 4, nil))
	assert.Equal(t, []byte("head"), Splice(buf, 0, 10, []byte("head")))
	assert.Equal(t, orig, buf, "Splice must not modify its input")

	out := Splice(buf, 0, 0, nil)
	out[0] = 'X'
	assert.Equal(t, orig, buf, "Splice must return a fresh buffer")
}
