package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// UploadFile sends a dataset file to the service's file store and returns its
// reference. The reader is streamed; it is not buffered in memory.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader) (FileRef, error) {
	var ref FileRef

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(filename))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("files"), pr)
	if err != nil {
		return ref, fmt.Errorf("evaluation: new upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ref, fmt.Errorf("evaluation: upload: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ref, fmt.Errorf("evaluation: read upload response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return ref, newStatusError(resp, raw)
	}
	if err := json.Unmarshal(raw, &ref); err != nil {
		return ref, fmt.Errorf("evaluation: decode upload response: %w", err)
	}
	return ref, nil
}

// Export streams an export of a run's results. The returned reader must be
// closed by the caller; filename comes from the Content-Disposition header
// when present.
func (c *Client) Export(ctx context.Context, runID, format string) (io.ReadCloser, string, error) {
	endpoint := c.endpoint("runs", runID, "export")
	if format != "" {
		endpoint += "?format=" + format
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("evaluation: new export request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("evaluation: export: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, "", newStatusError(resp, raw)
	}

	filename := "export"
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				filename = name
			}
		}
	}
	return resp.Body, filename, nil
}
