package uninstlog

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/require"
)

func newRawHeader(id string, version, numRecs int32) rawHeader {
	var h rawHeader
	copy(h.ID[:], id)
	copy(h.AppID[:], "{B7A2C1E0-OLDAPP}_is1")
	copy(h.AppName[:], "Old App")
	h.Version = version
	h.NumRecs = numRecs
	h.EndOffset = 4096
	h.Flags = 0x11
	return h
}

// buildHeader encodes h and stamps a valid crc over the first 444 bytes.
func buildHeader(t *testing.T, h rawHeader) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &h))
	b := buf.Bytes()
	require.Len(t, b, HeaderSize)
	binary.LittleEndian.PutUint32(b[crcOffset:], crc32.ChecksumIEEE(b[:crcOffset]))
	return b
}

func encodeRec(typ uint16, extra uint32, data []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, typ)
	binary.Write(&buf, binary.LittleEndian, extra)
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func utf16Bytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[2*i:], u)
	}
	return b
}

// framedPayload builds 0xFE, -len, utf16(s), tail..., 0xFF.
func framedPayload(s string, tail []byte) []byte {
	text := utf16Bytes(s)
	var buf bytes.Buffer
	buf.WriteByte(0xFE)
	binary.Write(&buf, binary.LittleEndian, int32(-len(text)))
	buf.Write(text)
	buf.Write(tail)
	buf.WriteByte(0xFF)
	return buf.Bytes()
}
