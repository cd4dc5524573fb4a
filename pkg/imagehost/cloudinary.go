// Package imagehost uploads images to Cloudinary with an unsigned preset.
package imagehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// UploadTimeout bounds a whole upload request.
const UploadTimeout = 30 * time.Second

const defaultBaseURL = "https://api.cloudinary.com/v1_1"

// ErrNoSecureURL is returned when the host accepts the upload but returns no URL.
var ErrNoSecureURL = errors.New("no secure URL in response")

// Error is a non-2xx answer from the image host.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("image host returned status %d", e.Status)
	}
	return fmt.Sprintf("image host returned status %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status of the failed upload.
func (e *Error) StatusCode() int { return e.Status }

// UploadResult is the subset of the host's answer we use.
type UploadResult struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Format    string `json:"format"`
	Bytes     int64  `json:"bytes"`
}

// Cloudinary uploads files for one cloud and preset.
type Cloudinary struct {
	cloudName string
	preset    string
	baseURL   string
	http      *http.Client
}

// NewCloudinary creates an uploader. Empty credentials produce an uploader
// whose Configured method reports false.
func NewCloudinary(cloudName, preset string) *Cloudinary {
	return &Cloudinary{
		cloudName: cloudName,
		preset:    preset,
		baseURL:   defaultBaseURL,
		http:      &http.Client{},
	}
}

// WithBaseURL points the uploader at another API root.
func (c *Cloudinary) WithBaseURL(u string) *Cloudinary {
	c.baseURL = u
	return c
}

// Configured reports whether cloud name and preset are both set.
func (c *Cloudinary) Configured() bool {
	return c.cloudName != "" && c.preset != ""
}

// Upload streams r as a multipart form with the fields file and upload_preset.
func (c *Cloudinary) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	if !c.Configured() {
		return nil, errors.New("imagehost: cloud name and upload preset are required")
	}

	ctx, cancel := context.WithTimeout(ctx, UploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, filename, c.preset, r))
	}()

	url := fmt.Sprintf("%s/%s/image/upload", c.baseURL, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		pr.Close()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		logrus.WithFields(logrus.Fields{"status": resp.StatusCode, "file": filename}).Warn("image upload rejected")
		return nil, &Error{Status: resp.StatusCode, Message: body.Error.Message}
	}

	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("imagehost: decode response: %w", err)
	}
	if out.SecureURL == "" {
		return nil, ErrNoSecureURL
	}
	return &out, nil
}

func writeForm(form *multipart.Writer, filename, preset string, r io.Reader) error {
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	if err := form.WriteField("upload_preset", preset); err != nil {
		return err
	}
	return form.Close()
}
