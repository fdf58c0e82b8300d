// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/docchat/internal/cloud"
	"github.com/jeranaias/docchat/internal/session"
	"github.com/jeranaias/docchat/internal/util"
)

// uploadAndAttach uploads the file at path and makes it the pending file.
func uploadAndAttach(ctx context.Context, client *cloud.Client, s *session.Session, path string) (*cloud.UploadedDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := client.UploadDocument(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", path, err)
	}
	s.AttachFile(doc.ID, doc.Filename)
	return doc, nil
}

// downloadDocument saves a generated document. dest may be a directory
// (the service's file name is used), a file path, or empty for the current
// directory. It returns the written path.
func downloadDocument(ctx context.Context, client *cloud.Client, id, dest string) (string, int64, error) {
	path, err := downloadPath(ctx, client, id, dest)
	if err != nil {
		return "", 0, err
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := client.DownloadDocument(ctx, id, pw)
		pw.CloseWithError(err)
	}()

	// RELIABILITY: The file only appears once the whole body has arrived.
	n, err := util.AtomicWriteStream(path, pr, 0644)
	pr.Close()
	<-done
	if err != nil {
		return "", 0, fmt.Errorf("failed to download %s: %w", id, err)
	}
	return path, n, nil
}

// downloadPath resolves where document id is written. The name comes from
// the document's metadata, falling back to the id.
func downloadPath(ctx context.Context, client *cloud.Client, id, dest string) (string, error) {
	if dest != "" && !isDir(dest) && !strings.HasSuffix(dest, string(os.PathSeparator)) {
		return dest, nil
	}

	name := id
	if meta, err := client.DocumentMetadata(ctx, id); err == nil && meta.Filename != "" {
		// SECURITY: Only the base name of a server-supplied file name is used.
		name = filepath.Base(filepath.Clean("/" + meta.Filename))
	}
	if dest == "" {
		dest = "."
	}
	return filepath.Join(dest, name), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
