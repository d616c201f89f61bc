package uninstlog

import (
	"encoding/binary"
	"fmt"
	"io"
)

// RecType tags the action a FileRec undoes. The set is closed; any other
// value on disk is a decode error.
type RecType uint16

const (
	RecUserDefined          RecType = 0x01
	RecStartInstall         RecType = 0x10
	RecEndInstall           RecType = 0x11
	RecCompiledCode         RecType = 0x20
	RecRun                  RecType = 0x80
	RecDeleteDirOrFiles     RecType = 0x81
	RecDeleteFile           RecType = 0x82
	RecDeleteGroupOrItem    RecType = 0x83
	RecIniDeleteEntry       RecType = 0x84
	RecIniDeleteSection     RecType = 0x85
	RecRegDeleteEntireKey   RecType = 0x86
	RecRegClearValue        RecType = 0x87
	RecRegDeleteKeyIfEmpty  RecType = 0x88
	RecRegDeleteValue       RecType = 0x89
	RecDecrementSharedCount RecType = 0x8A
	RecRefreshFileAssoc     RecType = 0x8B
	RecMutexCheck           RecType = 0x8C
)

var recTypeNames = map[RecType]string{
	RecUserDefined:          "UserDefined",
	RecStartInstall:         "StartInstall",
	RecEndInstall:           "EndInstall",
	RecCompiledCode:         "CompiledCode",
	RecRun:                  "Run",
	RecDeleteDirOrFiles:     "DeleteDirOrFiles",
	RecDeleteFile:           "DeleteFile",
	RecDeleteGroupOrItem:    "DeleteGroupOrItem",
	RecIniDeleteEntry:       "IniDeleteEntry",
	RecIniDeleteSection:     "IniDeleteSection",
	RecRegDeleteEntireKey:   "RegDeleteEntireKey",
	RecRegClearValue:        "RegClearValue",
	RecRegDeleteKeyIfEmpty:  "RegDeleteKeyIfEmpty",
	RecRegDeleteValue:       "RegDeleteValue",
	RecDecrementSharedCount: "DecrementSharedCount",
	RecRefreshFileAssoc:     "RefreshFileAssoc",
	RecMutexCheck:           "MutexCheck",
}

// ParseRecType maps a raw tag to a known RecType.
func ParseRecType(v uint16) (RecType, error) {
	t := RecType(v)
	if _, ok := recTypeNames[t]; !ok {
		return 0, fmt.Errorf("%w: 0x%x", ErrUnrecognizedRecordType, v)
	}
	return t, nil
}

// RecTypeByName looks up a RecType by its name, e.g. "DeleteFile".
func RecTypeByName(name string) (RecType, error) {
	for t, n := range recTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnrecognizedRecordType, name)
}

func (t RecType) String() string {
	if n, ok := recTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("RecType(0x%x)", uint16(t))
}

// MaxDataSize bounds a record payload; anything larger is treated as a
// corrupt length field.
const MaxDataSize = 0x8000000

// fileRecPrefixSize is typ(2) + extra data(4) + data size(4).
const fileRecPrefixSize = 10

// FileRec is one entry of the record stream following the header.
type FileRec struct {
	Type      RecType
	ExtraData uint32 // meaning depends on Type
	Data      []byte
}

// ReadFileRec reads the next record from r.
func ReadFileRec(r io.Reader) (*FileRec, error) {
	var prefix [fileRecPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, fmt.Errorf("failed to read file rec prefix: %w", err)
	}

	typ, err := ParseRecType(binary.LittleEndian.Uint16(prefix[0:2]))
	if err != nil {
		return nil, err
	}
	extraData := binary.LittleEndian.Uint32(prefix[2:6])
	dataSize := binary.LittleEndian.Uint32(prefix[6:10])
	if dataSize > MaxDataSize {
		return nil, fmt.Errorf("%w: %d", ErrOversizedPayload, dataSize)
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read file rec data (%d bytes): %w", dataSize, err)
	}

	return &FileRec{
		Type:      typ,
		ExtraData: extraData,
		Data:      data,
	}, nil
}

// Size returns the encoded length of the record.
func (fr *FileRec) Size() int {
	return fileRecPrefixSize + len(fr.Data)
}

// WriteTo encodes the record with its current payload length.
func (fr *FileRec) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, fr.Size())
	binary.LittleEndian.PutUint16(buf[0:], uint16(fr.Type))
	binary.LittleEndian.PutUint32(buf[2:], fr.ExtraData)
	binary.LittleEndian.PutUint32(buf[6:], uint32(len(fr.Data)))
	copy(buf[fileRecPrefixSize:], fr.Data)

	n, err := w.Write(buf)
	if err != nil {
		return int64(n), fmt.Errorf("failed to write file rec: %w", err)
	}
	return int64(n), nil
}

func (fr *FileRec) String() string {
	return fmt.Sprintf("FileRec 0x%x 0x%x %d bytes", uint16(fr.Type), fr.ExtraData, len(fr.Data))
}
