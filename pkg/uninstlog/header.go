package uninstlog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	// HeaderSize is the fixed size of the block at the start of every log.
	HeaderSize = 448

	HeaderID32 = "Inno Setup Uninstall Log (b)"
	HeaderID64 = "Inno Setup Uninstall Log (b) 64-bit"

	// HighestSupportedVersion is the newest log format version this package reads.
	HighestSupportedVersion = 1048

	crcOffset = HeaderSize - 4
)

// rawHeader mirrors the on-disk layout (448 bytes, little-endian).
type rawHeader struct {
	ID        [64]byte
	AppID     [128]byte
	AppName   [128]byte
	Version   int32
	NumRecs   int32
	EndOffset uint32
	Flags     uint32
	Reserved  [108]byte
	CRC       uint32
}

// Header is the decoded preamble of an uninstall log.
type Header struct {
	ID        string
	AppID     string
	AppName   string
	Version   int32
	NumRecs   uint32
	EndOffset uint32
	Flags     uint32
	CRC       uint32

	raw [HeaderSize]byte
}

// ReadHeader consumes exactly HeaderSize bytes from r and validates them.
func ReadHeader(r io.Reader) (*Header, error) {
	h := &Header{}
	if _, err := io.ReadFull(r, h.raw[:]); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var raw rawHeader
	if err := binary.Read(bytes.NewReader(h.raw[:]), binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	actual := crc32.ChecksumIEEE(h.raw[:crcOffset])
	if actual != raw.CRC {
		return nil, fmt.Errorf("%w: stored 0x%x, computed 0x%x", ErrChecksumMismatch, raw.CRC, actual)
	}

	h.ID = fixedString(raw.ID[:])
	switch h.ID {
	case HeaderID32, HeaderID64:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedMagic, h.ID)
	}

	if raw.Version > HighestSupportedVersion {
		return nil, fmt.Errorf("%w: %d (highest %d)", ErrUnsupportedVersion, raw.Version, HighestSupportedVersion)
	}

	h.AppID = fixedString(raw.AppID[:])
	h.AppName = fixedString(raw.AppName[:])
	h.Version = raw.Version
	h.NumRecs = uint32(raw.NumRecs)
	h.EndOffset = raw.EndOffset
	h.Flags = raw.Flags
	h.CRC = raw.CRC
	return h, nil
}

// Is64Bit reports whether the log was written by a 64-bit uninstaller.
func (h *Header) Is64Bit() bool {
	return h.ID == HeaderID64
}

// Bytes returns the header block exactly as it was read.
func (h *Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	copy(b, h.raw[:])
	return b
}

func (h *Header) String() string {
	return fmt.Sprintf(`Header
id: %s
app id: %s
app name: %s
version: %d
num recs: %d
end offset: %d
flags: 0x%x
crc: 0x%x`, h.ID, h.AppID, h.AppName, h.Version, h.NumRecs, h.EndOffset, h.Flags, h.CRC)
}

// fixedString cuts a NUL-padded field. Fields that are not UTF-8 were
// written by ANSI builds of the installer and are decoded as Windows-1252.
func fixedString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if utf8.Valid(b) {
		return string(b)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(bytes.ToValidUTF8(b, []byte("�")))
	}
	return string(decoded)
}
