package middleware

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"unihub/utils"
)

const MaxUploadSize = 10 * 1024 * 1024

var allowedMediaTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
	"image/gif":       {},
	"image/webp":      {},
	"video/mp4":       {},
	"video/mpeg":      {},
	"video/quicktime": {},
}

// StagedFile is a multipart upload written to the temp directory.
type StagedFile struct {
	Path     string
	Filename string
	MimeType string
	Size     int64
}

// IsVideo reports whether the staged file carries a video MIME type.
func (f *StagedFile) IsVideo() bool {
	return strings.HasPrefix(f.MimeType, "video/")
}

// SingleUpload stages at most one file from field. Handlers read it with
// UploadedFile. The staged copy is removed once the handler returns, whether
// it succeeded or not.
func SingleUpload(field, tempDir string) fiber.Handler {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile(field)
		if err != nil {
			if errors.Is(err, fasthttp.ErrMissingFile) || errors.Is(err, fasthttp.ErrNoMultipartForm) {
				return c.Next()
			}
			return utils.BadRequest("Invalid multipart form: " + err.Error())
		}

		if fh.Size > MaxUploadSize {
			return utils.BadRequest("File too large. Maximum size is 10MB.")
		}

		mimeType := strings.ToLower(strings.TrimSpace(strings.Split(fh.Header.Get(fiber.HeaderContentType), ";")[0]))
		if _, ok := allowedMediaTypes[mimeType]; !ok {
			return utils.BadRequest("Invalid file type. Only images (JPEG, PNG, GIF, WebP) and videos (MP4, MPEG, MOV) are allowed.")
		}

		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(tempDir, field+"-"+uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
		if err := c.SaveFile(fh, path); err != nil {
			return err
		}
		defer func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				utils.LogError("upload_cleanup", err, map[string]interface{}{"path": path})
			}
		}()

		c.Locals("upload", &StagedFile{
			Path:     path,
			Filename: fh.Filename,
			MimeType: mimeType,
			Size:     fh.Size,
		})

		return c.Next()
	}
}

// UploadedFile returns the file staged by SingleUpload, or nil.
func UploadedFile(c *fiber.Ctx) *StagedFile {
	f, _ := c.Locals("upload").(*StagedFile)
	return f
}
