// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "deep", "test.txt")

	if err := AtomicWriteFile(path, []byte("test data"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != "test data" {
		t.Errorf("Content mismatch: got %q", string(content))
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")

	if err := AtomicWriteFile(path, []byte("initial"), 0644); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("updated"), 0644); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "updated" {
		t.Errorf("Content = %q, want %q", string(content), "updated")
	}
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestAtomicWriteStream_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")

	if _, err := AtomicWriteStream(path, &failingReader{}, 0644); err == nil {
		t.Fatal("expected error from failing reader")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty dir after failed write, found %d entries", len(entries))
	}
}

func TestAtomicWriteStream_ReportsBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	data := strings.Repeat("x", 64*1024)

	n, err := AtomicWriteStream(path, io.LimitReader(strings.NewReader(data), int64(len(data))), 0644)
	if err != nil {
		t.Fatalf("AtomicWriteStream failed: %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("n = %d, want %d", n, len(data))
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	testCases := []struct {
		input    string
		maxRunes int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hi", 0, ""},
		{"abcdef", 3, "abc"},
		{"héllo wörld", 8, "héllo..."},
	}

	for _, tc := range testCases {
		if got := TruncateRunes(tc.input, tc.maxRunes); got != tc.expected {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.input, tc.maxRunes, got, tc.expected)
		}
	}
}

func TestTruncateWidth_NeverExceedsWidth(t *testing.T) {
	inputs := []string{"hello world", "日本語のテキストです", "mixed 日本 text", ""}
	for _, in := range inputs {
		for width := 1; width <= 12; width++ {
			got := TruncateWidth(in, width)
			if StringWidth(got) > width {
				t.Errorf("TruncateWidth(%q, %d) = %q (width %d)", in, width, got, StringWidth(got))
			}
		}
	}
}

func TestPadRight(t *testing.T) {
	got := PadRight("日本", 6)
	if StringWidth(got) != 6 {
		t.Errorf("PadRight width = %d, want 6", StringWidth(got))
	}
	if got := PadRight("a very long title", 6); StringWidth(got) != 6 {
		t.Errorf("PadRight long width = %d, want 6", StringWidth(got))
	}
}

func TestSingleLine(t *testing.T) {
	if got := SingleLine("a\nb\tc"); got != "a b c" {
		t.Errorf("SingleLine = %q", got)
	}
}

// =============================================================================
// SLEEP TESTS
// =============================================================================

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return promptly on cancelled context")
	}
}

func TestSleep_Elapses(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep error = %v", err)
	}
	if err := NoSleep(context.Background(), time.Hour); err != nil {
		t.Errorf("NoSleep error = %v", err)
	}
}
