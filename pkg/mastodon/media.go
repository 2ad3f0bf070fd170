package mastodon

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"

	errs "mastowatch/pkg/errors"
)

// defaultMediaFilename is used when the source URL has no usable last segment
const defaultMediaFilename = "file.jpg"

// MediaFilename derives the upload filename from the last path segment of
// a media URL
func MediaFilename(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return defaultMediaFilename
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return defaultMediaFilename
	}
	return name
}

// DownloadMedia downloads the bytes behind a media URL
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	c.logger.DebugWithFields("downloading media", map[string]interface{}{
		"url": mediaURL,
	})

	resp, err := c.get(ctx, mediaURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to download %s: %v", describeURL(mediaURL), err)
	}

	c.logger.DebugWithFields("downloaded media", map[string]interface{}{
		"url":  mediaURL,
		"size": len(data),
	})

	return data, nil
}

// UploadMedia uploads data as a multipart "file" part with an optional
// description and returns the new media id
func (c *Client) UploadMedia(ctx context.Context, filename string, data []byte, description string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", errs.New(errs.ErrorTypeUnknown, 0, "failed to build upload: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", errs.New(errs.ErrorTypeUnknown, 0, "failed to build upload: %v", err)
	}
	if description != "" {
		if err := writer.WriteField("description", description); err != nil {
			return "", errs.New(errs.ErrorTypeUnknown, 0, "failed to build upload: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", errs.New(errs.ErrorTypeUnknown, 0, "failed to build upload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, GetMediaURL(c.baseURL), &body)
	if err != nil {
		return "", errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.doRequest(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return "", err
	}

	var uploaded UploadedMedia
	if err := c.decodeJSON(resp, &uploaded); err != nil {
		return "", err
	}
	if uploaded.ID == "" {
		return "", errs.New(errs.ErrorTypeParsing, resp.StatusCode, "media upload returned no id")
	}

	c.logger.DebugWithFields("uploaded media", map[string]interface{}{
		"media_id": uploaded.ID,
		"filename": filename,
		"size":     len(data),
	})

	return uploaded.ID, nil
}
