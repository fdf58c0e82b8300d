// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

// =============================================================================
// TEMPLATES
// =============================================================================

// Template is a server-side document template.
type Template struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	Filename        string `json:"filename,omitempty"`
	Type            string `json:"type,omitempty"`
	InstructionType string `json:"instruction_type,omitempty"`
	Description     string `json:"description,omitempty"`
}

// UnmarshalJSON accepts "_id" or "id" and "instructionType".
func (t *Template) UnmarshalJSON(data []byte) error {
	type plain Template
	var raw struct {
		plain
		MongoID   string `json:"_id"`
		CamelType string `json:"instructionType"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Template(raw.plain)
	if raw.MongoID != "" {
		t.ID = raw.MongoID
	}
	if t.InstructionType == "" {
		t.InstructionType = raw.CamelType
	}
	return nil
}

// DisplayName returns the name shown to the user.
func (t Template) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Filename != "" {
		return t.Filename
	}
	return t.ID
}

// InstructionKind returns the template's declared instruction type, or "".
func (t Template) InstructionKind() string {
	if t.Type != "" {
		return t.Type
	}
	return t.InstructionType
}

// ListTemplates returns one page of templates. The service returns either
// {"data": [...], "pagination": {...}} or a bare array.
func (c *Client) ListTemplates(ctx context.Context, page, limit int) ([]Template, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return getList[Template](ctx, c, "templates", c.documentsURL+"/api/templates?"+q.Encode(), "data", "templates")
}

// FindTemplate looks a template up by id across the first page of results.
func (c *Client) FindTemplate(ctx context.Context, id string) (*Template, error) {
	templates, err := c.ListTemplates(ctx, 1, 100)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		if templates[i].ID == id {
			return &templates[i], nil
		}
	}
	return nil, fmt.Errorf("template %q not found", id)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// UploadedDocument is the service's reply to an upload.
type UploadedDocument struct {
	ID       string `json:"id"`
	Filename string `json:"filename,omitempty"`
}

// UnmarshalJSON accepts {"document": {"_id": ...}} or a flat {"_id": ...}.
func (d *UploadedDocument) UnmarshalJSON(data []byte) error {
	type doc struct {
		MongoID  string `json:"_id"`
		ID       string `json:"id"`
		Filename string `json:"filename"`
	}
	var raw struct {
		doc
		Document *doc `json:"document"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	src := raw.doc
	if raw.Document != nil {
		src = *raw.Document
	}
	d.ID = src.MongoID
	if d.ID == "" {
		d.ID = src.ID
	}
	d.Filename = src.Filename
	return nil
}

// DocumentMetadata describes a stored document.
type DocumentMetadata struct {
	ID          string `json:"_id,omitempty"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Format      string `json:"format,omitempty"`
}

// Download describes a fetched document.
type Download struct {
	Filename    string
	ContentType string
	Bytes       int64
}

// UploadDocument uploads r as a multipart "file" field named name.
func (c *Client) UploadDocument(ctx context.Context, name string, r io.Reader) (*UploadedDocument, error) {
	const op = "upload"
	if strings.TrimSpace(name) == "" {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("file name is required")}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	n, err := io.Copy(part, io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to read file: %w", err)}
	}
	if n > MaxUploadSize {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("file exceeds maximum size of %d bytes", MaxUploadSize)}
	}
	if err := mw.Close(); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	resp, err := c.do(ctx, op, http.MethodPost, c.documentsURL+"/api/documents/upload", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := readResponse(resp)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	var doc UploadedDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if doc.ID == "" {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("service returned no document id")}
	}
	if doc.Filename == "" {
		doc.Filename = filepath.Base(name)
	}
	return &doc, nil
}

// DownloadDocument streams a document into w.
func (c *Client) DownloadDocument(ctx context.Context, documentID string, w io.Writer) (*Download, error) {
	const op = "download"
	if documentID == "" {
		return nil, &TransportError{Op: op, Err: ErrMissingID}
	}

	resp, err := c.do(ctx, op, http.MethodGet, c.documentURL(documentID)+"/download", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to read document: %w", err)}
	}
	return &Download{
		Filename:    attachmentFilename(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Bytes:       n,
	}, nil
}

// DocumentMetadata fetches a document's metadata.
func (c *Client) DocumentMetadata(ctx context.Context, documentID string) (*DocumentMetadata, error) {
	if documentID == "" {
		return nil, &TransportError{Op: "metadata", Err: ErrMissingID}
	}
	var meta DocumentMetadata
	if err := c.doJSON(ctx, "metadata", http.MethodGet, c.documentURL(documentID)+"/metadata", nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) documentURL(id string) string {
	return c.documentsURL + "/api/documents/" + url.PathEscape(id)
}

// attachmentFilename extracts the filename from a Content-Disposition header.
// SECURITY: Only the base name is kept so a hostile header cannot point
// outside the download directory.
func attachmentFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := filepath.Base(filepath.Clean("/" + params["filename"]))
	if name == "/" || name == "." {
		return ""
	}
	return name
}
