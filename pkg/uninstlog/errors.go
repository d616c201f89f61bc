package uninstlog

import "errors"

// Decode failures. Every one of them is fatal for the log being read;
// callers match them with errors.Is. Short reads surface as wrapped
// io.EOF / io.ErrUnexpectedEOF.
var (
	ErrChecksumMismatch        = errors.New("header crc32 check failed")
	ErrUnrecognizedMagic       = errors.New("header id not recognized")
	ErrUnsupportedVersion      = errors.New("header version not supported")
	ErrOversizedPayload        = errors.New("file rec data size too large")
	ErrUnrecognizedRecordType  = errors.New("file rec type not recognized")
	ErrMalformedStringFraming  = errors.New("file rec data is not a framed string")
	ErrInvalidReplacementValue = errors.New("replacement prefix is not valid utf-8")
)
