package uninstlog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// Log is a fully decoded uninstall log: its header, the NumRecs records
// that follow it, and whatever bytes come after the last record.
type Log struct {
	Header  *Header
	Records []*FileRec
	Trailer []byte
}

// OpenLog reads and decodes the log file at path.
func OpenLog(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open uninstall log %s: %w", path, err)
	}
	defer f.Close()

	l, err := ReadLog(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to read uninstall log %s: %w", path, err)
	}
	return l, nil
}

// ReadLog decodes a log from r. Records are read strictly in order and
// the first error aborts the whole read.
func ReadLog(r io.Reader) (*Log, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	l := &Log{Header: h}
	// NumRecs comes from the file, so don't trust it for preallocation.
	for i := uint32(0); i < h.NumRecs; i++ {
		rec, err := ReadFileRec(r)
		if err != nil {
			return nil, fmt.Errorf("record %d of %d: %w", i, h.NumRecs, err)
		}
		l.Records = append(l.Records, rec)
	}

	trailer, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data after record %d: %w", h.NumRecs, err)
	}
	l.Trailer = trailer
	return l, nil
}

// Size returns the length of the encoded log.
func (l *Log) Size() int64 {
	n := int64(HeaderSize) + int64(len(l.Trailer))
	for _, rec := range l.Records {
		n += int64(rec.Size())
	}
	return n
}

// WriteTo writes the header block exactly as it was read, the records with
// their current payloads and the trailer. Header fields such as EndOffset
// and CRC are not updated.
func (l *Log) WriteTo(w io.Writer) (int64, error) {
	var total int64

	n, err := w.Write(l.Header.raw[:])
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("failed to write header: %w", err)
	}

	for i, rec := range l.Records {
		n, err := rec.WriteTo(w)
		total += n
		if err != nil {
			return total, fmt.Errorf("record %d: %w", i, err)
		}
	}

	n, err = w.Write(l.Trailer)
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("failed to write trailer: %w", err)
	}
	return total, nil
}

// Bytes returns the encoded log.
func (l *Log) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(int(l.Size()))
	// bytes.Buffer writes don't fail.
	_, _ = l.WriteTo(&buf)
	return buf.Bytes()
}
