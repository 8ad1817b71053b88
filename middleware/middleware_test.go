package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"unihub/utils"
)

func multipartRequest(t *testing.T, field, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("title", "Campus fest"))

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeEnvelope(t *testing.T, resp *http.Response) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func uploadApp(dir string, seen *StagedFile, handlerErr error) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(false), BodyLimit: 2 * MaxUploadSize})
	app.Post("/upload", SingleUpload("media", dir), func(c *fiber.Ctx) error {
		if f := UploadedFile(c); f != nil {
			*seen = *f
			if _, err := os.Stat(f.Path); err != nil {
				return err
			}
		}
		if handlerErr != nil {
			return handlerErr
		}
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestSingleUploadStagesAndRemovesFile(t *testing.T) {
	dir := t.TempDir()
	var seen StagedFile
	app := uploadApp(dir, &seen, nil)

	resp, err := app.Test(multipartRequest(t, "media", "pic.PNG", "image/png", []byte("png-bytes")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "pic.PNG", seen.Filename)
	assert.Equal(t, "image/png", seen.MimeType)
	assert.EqualValues(t, 9, seen.Size)
	assert.False(t, seen.IsVideo())
	assert.Contains(t, seen.Path, "media-")

	_, err = os.Stat(seen.Path)
	assert.True(t, os.IsNotExist(err), "staged file should be removed")
}

func TestSingleUploadRemovesFileOnHandlerError(t *testing.T) {
	dir := t.TempDir()
	var seen StagedFile
	app := uploadApp(dir, &seen, utils.NotFound("Gallery item not found"))

	resp, err := app.Test(multipartRequest(t, "media", "clip.mp4", "video/mp4", []byte("mp4")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.True(t, seen.IsVideo())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSingleUploadRejectsMimeType(t *testing.T) {
	var seen StagedFile
	app := uploadApp(t.TempDir(), &seen, nil)

	resp, err := app.Test(multipartRequest(t, "media", "doc.pdf", "application/pdf", []byte("%PDF")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "Invalid file type")
	assert.Empty(t, seen.Path)
}

func TestSingleUploadRejectsLargeFile(t *testing.T) {
	var seen StagedFile
	app := uploadApp(t.TempDir(), &seen, nil)

	big := make([]byte, MaxUploadSize+1)
	req := multipartRequest(t, "media", "big.jpg", "image/jpeg", big)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "File too large. Maximum size is 10MB.", decodeEnvelope(t, resp).Message)
}

func TestSingleUploadWithoutFileContinues(t *testing.T) {
	var seen StagedFile
	app := uploadApp(t.TempDir(), &seen, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, seen.Path)
}

func TestErrorHandlerEnvelope(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		hide       bool
		wantStatus int
		wantMsg    string
		wantErrs   []string
	}{
		{"api error", utils.BadRequest("Bad input", "name is required"), true, 400, "Bad input", []string{"name is required"}},
		{"fiber error", fiber.ErrMethodNotAllowed, true, 405, "Method Not Allowed", []string{}},
		{"plain error visible", errors.New("db exploded"), false, 500, "db exploded", []string{}},
		{"plain error hidden", errors.New("db exploded"), true, 500, "Internal Server Error", []string{}},
		{"explicit internal kept", utils.Internal("Failed to send verification email. Please try again."), true, 500,
			"Failed to send verification email. Please try again.", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(tt.hide)})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			env := decodeEnvelope(t, resp)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantStatus, env.StatusCode)
			assert.Equal(t, tt.wantMsg, env.Message)
			assert.Equal(t, tt.wantErrs, env.Errors)
		})
	}
}

func TestNotFoundHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(false)})
	app.Use(NotFoundHandler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Route GET /nope not found", decodeEnvelope(t, resp).Message)
}

func TestCORSPreflight(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(DefaultCORSConfig([]string{"http://localhost:5173"})))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "3600", resp.Header.Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Headers"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}
