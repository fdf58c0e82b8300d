// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to path atomically. See AtomicWriteStream.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	_, err := AtomicWriteStream(path, bytes.NewReader(data), perm)
	return err
}

// RELIABILITY: Atomic write with fsync prevents partial files on crash.
//
// AtomicWriteStream copies r into a temporary file next to path, fsyncs it,
// and renames it over path. Either the old file or the complete new file
// exists afterwards; a failed or interrupted copy leaves nothing behind.
// It returns the number of bytes written.
func AtomicWriteStream(path string, r io.Reader, perm os.FileMode) (int64, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get absolute path: %w", err)
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create parent directory: %w", err)
	}

	// Same directory as the target so the rename stays on one filesystem.
	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("failed to write data: %w", err)
	}
	if err := f.Sync(); err != nil {
		return n, fmt.Errorf("failed to sync data to disk: %w", err)
	}
	// Close before rename - required on Windows.
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return n, fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := os.Rename(tempPath, absPath); err != nil {
		return n, fmt.Errorf("failed to rename temp file: %w", err)
	}

	committed = true
	return n, nil
}
