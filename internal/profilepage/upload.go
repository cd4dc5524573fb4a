package profilepage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"carpool-service/internal/apiclient"
	"carpool-service/internal/users"
	"carpool-service/pkg/imagehost"
)

// MaxImageSize is the largest picture accepted for upload.
const MaxImageSize = 5 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// File is a picture picked by the user.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// OpenFile opens path as an upload candidate. The content type is sniffed
// from the first bytes and falls back to the file extension. The caller
// closes the returned closer.
func OpenFile(path string) (*File, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, nil, err
	}
	head = head[:n]

	ct := http.DetectContentType(head)
	if ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
			ct = byExt
		}
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}

	return &File{
		Name:        filepath.Base(path),
		ContentType: ct,
		Size:        info.Size(),
		Content:     io.MultiReader(bytes.NewReader(head), f),
	}, f, nil
}

// validateImage returns the message shown for a file that must not be
// uploaded, or "".
func (p *Page) validateImage(f *File) string {
	switch {
	case f == nil:
		return "Please select an image file"
	case !allowedImageTypes[f.ContentType]:
		return "Please select a valid image file (JPEG, PNG, or GIF)"
	case f.Size > MaxImageSize:
		return "Image size should be less than 5MB"
	case p.images == nil || !p.images.Configured():
		return "Image upload configuration is missing. Please check your environment variables."
	}
	return ""
}

// UploadPicture validates f, sends it to the image host and stores the
// returned URL as the profile picture. Nothing reaches the network when
// validation fails.
func (p *Page) UploadPicture(ctx context.Context, f *File) error {
	if msg := p.validateImage(f); msg != "" {
		p.toast.Error(msg)
		return errors.New(msg)
	}
	sess := p.auth.Current()
	if sess == nil {
		p.toast.Error("Please log in to update your profile")
		return ErrNotAuthenticated
	}

	p.uploading = true
	defer func() { p.uploading = false }()

	log := logrus.WithFields(logrus.Fields{"user_id": sess.UserID, "file": f.Name, "size": f.Size})

	p.toast.Info("Starting upload...")
	res, err := p.images.Upload(ctx, f.Name, f.Content)
	if err != nil {
		log.WithError(err).Warn("image upload failed")
		p.toast.Error(uploadErrorMessage(err))
		return err
	}

	p.toast.Info("Updating profile...")
	patchCtx, cancel := context.WithTimeout(ctx, apiclient.PatchTimeout)
	defer cancel()
	url := res.SecureURL
	if _, err := p.api.UpdateProfile(patchCtx, sess.UserID, users.UpdateRequest{ProfilePicture: &url}); err != nil {
		log.WithError(err).Warn("profile picture update failed")
		p.toast.Error(uploadErrorMessage(err))
		return err
	}

	_ = p.Refetch(ctx)
	log.WithField("url", url).Info("profile picture updated")
	p.toast.Success("Profile picture updated successfully")
	return nil
}

// uploadErrorMessage maps an upload or picture PATCH failure to a toast. Only
// messages reported by the image host itself are shown verbatim.
func uploadErrorMessage(err error) string {
	if apiclient.IsTimeout(err) {
		return "Upload timed out. Please try again"
	}
	switch apiclient.Status(err) {
	case http.StatusRequestEntityTooLarge:
		return "File size too large for upload"
	case http.StatusUnsupportedMediaType:
		return "Unsupported file type"
	}
	if apiclient.IsOffline(err) {
		return "No internet connection"
	}

	var hostErr *imagehost.Error
	if errors.As(err, &hostErr) && hostErr.Message != "" {
		return fmt.Sprintf("Upload failed: %s", hostErr.Message)
	}
	return "Failed to upload image. Please try again."
}
