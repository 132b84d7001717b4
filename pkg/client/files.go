package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fruitsalade/docdesk/pkg/models"
	"github.com/fruitsalade/docdesk/pkg/vpath"
)

// ListOptions controls a folder listing.
type ListOptions struct {
	// Force adds a cache-busting parameter so the listing reflects a
	// mutation that just completed.
	Force bool
}

// ListFiles returns the entries directly under folder ("" for the root),
// with folder placeholder objects removed.
func (c *Client) ListFiles(ctx context.Context, userID int64, folder string, opts ListOptions) ([]models.DirectoryEntry, error) {
	params := url.Values{}
	if folder != "" {
		params.Set("folder", folder)
	}
	if opts.Force {
		params.Set("t", strconv.FormatInt(time.Now().UnixMilli(), 10))
	}

	path := fmt.Sprintf("/api/files/list/%d", userID)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	resp, err := c.sendRead(ctx, "list", func() (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var entries []models.DirectoryEntry
	if err := decodeJSON("list", resp, &entries); err != nil {
		return nil, err
	}
	return FilterPlaceholders(entries), nil
}

// FilterPlaceholders drops folder marker objects from a listing.
func FilterPlaceholders(entries []models.DirectoryEntry) []models.DirectoryEntry {
	visible := make([]models.DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		if !e.IsPlaceholder() {
			visible = append(visible, e)
		}
	}
	return visible
}

// Progress reports upload progress as a whole percentage.
type Progress func(percent int)

// Upload sends one file as multipart field "file" to folder/name.
// progress, if set, receives non-decreasing percentages ending at 100 on
// success.
func (c *Client) Upload(ctx context.Context, userID int64, folder, name string, content io.Reader, size int64, progress Progress) error {
	target := vpath.Join(folder, name)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if _, err := mw.CreateFormFile("file", name); err != nil {
		return fmt.Errorf("upload %s: %w", target, err)
	}
	head := append([]byte(nil), buf.Bytes()...)
	buf.Reset()
	if err := mw.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", target, err)
	}
	tail := append([]byte(nil), buf.Bytes()...)

	pr := &progressReader{r: content, total: size, fn: progress}
	body := io.MultiReader(bytes.NewReader(head), pr, bytes.NewReader(tail))

	req, err := c.newRequest(ctx, http.MethodPost,
		fmt.Sprintf("/api/files/upload/%d/%s", userID, escapePath(target)), body)
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(head)) + size + int64(len(tail))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.send("upload", req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	pr.finish()
	return nil
}

// CreateFolder creates folder/name by uploading an empty placeholder
// object inside it. Folders exist only through the objects they contain.
func (c *Client) CreateFolder(ctx context.Context, userID int64, folder, name string) error {
	return c.Upload(ctx, userID, vpath.Join(folder, name), models.PlaceholderName, bytes.NewReader(nil), 0, nil)
}

// DeleteFile deletes a single file at path.
func (c *Client) DeleteFile(ctx context.Context, userID int64, path string) error {
	return c.delete(ctx, "delete", fmt.Sprintf("/api/files/delete/%d/%s", userID, escapePath(path)))
}

// DeleteFolder deletes a folder and everything below it.
func (c *Client) DeleteFolder(ctx context.Context, userID int64, path string) error {
	return c.delete(ctx, "delete folder", fmt.Sprintf("/api/files/delete-folder/%d/%s", userID, escapePath(path)))
}

func (c *Client) delete(ctx context.Context, op, path string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.send(op, req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Download streams the file at path. The caller must close the reader.
// The returned size is -1 when the server does not send a length.
func (c *Client) Download(ctx context.Context, userID int64, path string) (io.ReadCloser, int64, error) {
	return c.stream(ctx, "download", fmt.Sprintf("/api/files/download/%d/%s", userID, escapePath(path)))
}

// Certificate streams the student's certificate PDF.
func (c *Client) Certificate(ctx context.Context, userID int64) (io.ReadCloser, int64, error) {
	return c.stream(ctx, "certificate", fmt.Sprintf("/api/student/%d/certificate", userID))
}

// Transcript streams the student's transcript PDF.
func (c *Client) Transcript(ctx context.Context, userID int64) (io.ReadCloser, int64, error) {
	return c.stream(ctx, "transcript", fmt.Sprintf("/api/student/%d/transcript", userID))
}

func (c *Client) stream(ctx context.Context, op, path string) (io.ReadCloser, int64, error) {
	resp, err := c.sendRead(ctx, op, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, path, nil)
	})
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// progressReader reports read progress of an upload body.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	last  int
	fn    Progress
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.total > 0 {
			p.report(int((p.read*100 + p.total/2) / p.total))
		}
	}
	return n, err
}

func (p *progressReader) finish() {
	p.report(100)
}

func (p *progressReader) report(pct int) {
	if pct > 100 {
		pct = 100
	}
	if p.fn == nil || pct <= p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}
