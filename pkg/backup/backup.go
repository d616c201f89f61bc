// Package backup keeps LZ4-compressed copies of uninstall logs before
// they are overwritten.
package backup

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pierrec/lz4/v4"
)

// Extension is appended to the log path to name its backup.
const Extension = ".lz4"

// Write compresses data into path+Extension. An existing backup is never
// replaced; a timestamped name is used instead. It returns the file written.
func Write(path string, data []byte) (string, error) {
	backupPath := path + Extension
	if _, err := os.Stat(backupPath); err == nil {
		backupPath = fmt.Sprintf("%s.%s%s", path, time.Now().UTC().Format("20060102T150405.000000000"), Extension)
	}

	f, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create backup %s: %w", backupPath, err)
	}

	if err := compress(f, data); err != nil {
		f.Close()
		os.Remove(backupPath)
		return "", fmt.Errorf("failed to write backup %s: %w", backupPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(backupPath)
		return "", fmt.Errorf("failed to close backup %s: %w", backupPath, err)
	}
	return backupPath, nil
}

func compress(w io.Writer, data []byte) error {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(
		lz4.ChecksumOption(true),
		lz4.SizeOption(uint64(len(data))),
		lz4.CompressionLevelOption(lz4.Level5),
	); err != nil {
		return err
	}
	if _, err := io.Copy(zw, bytes.NewReader(data)); err != nil {
		return err
	}
	return zw.Close()
}

// Read decompresses a backup written by Write.
func Read(backupPath string) ([]byte, error) {
	f, err := os.Open(backupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup %s: %w", backupPath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(lz4.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress backup %s: %w", backupPath, err)
	}
	return data, nil
}

// Restore decompresses backupPath and atomically replaces dst with it.
func Restore(backupPath, dst string) error {
	data, err := Read(backupPath)
	if err != nil {
		return err
	}
	return ReplaceFile(dst, data)
}

// ReplaceFile writes data to a temp file next to path and renames it over
// path, so readers never see a partial file.
func ReplaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
