package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"unihub/config"
	"unihub/models"
	"unihub/routes"
	"unihub/utils"
)

type fakeMailer struct {
	mu   sync.Mutex
	fail bool
	otps map[string]string
}

func (m *fakeMailer) record(to, otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unavailable")
	}
	if m.otps == nil {
		m.otps = make(map[string]string)
	}
	m.otps[to] = otp
	return nil
}

func (m *fakeMailer) SendVerificationEmail(to, fullName, otp string) error {
	return m.record(to, otp)
}

func (m *fakeMailer) SendPasswordResetEmail(to, fullName, otp string) error {
	return m.record(to, otp)
}

func (m *fakeMailer) lastOTP(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.otps[to]
}

type fakeMedia struct {
	mu         sync.Mutex
	uploads    []string
	deleted    []string
	failUpload bool
	failDelete bool
}

func (f *fakeMedia) Upload(ctx context.Context, localPath string, opts utils.UploadOptions) (*utils.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload {
		return nil, utils.ErrMediaStore
	}
	f.uploads = append(f.uploads, localPath)
	id := fmt.Sprintf("%s/%d", opts.Folder, len(f.uploads))
	return &utils.UploadResult{
		PublicID:     id,
		SecureURL:    "https://cdn.test/" + id,
		ResourceType: opts.ResourceType,
		Format:       strings.TrimPrefix(filepath.Ext(localPath), "."),
		Width:        800,
		Height:       600,
		Bytes:        1234,
	}, nil
}

func (f *fakeMedia) Delete(ctx context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return utils.ErrMediaStore
	}
	f.deleted = append(f.deleted, publicID)
	return nil
}

func (f *fakeMedia) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	app    *fiber.App
	mailer *fakeMailer
	media  *fakeMedia
	hub    *utils.SeatHub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	prev := config.AppConfig
	config.AppConfig = config.Config{
		Environment:        "test",
		AccessTokenSecret:  "test-access-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenSecret: "test-refresh-secret",
		RefreshTokenExpiry: 240 * time.Hour,
		UploadTempDir:      t.TempDir(),
		AuthRateLimitMax:   1000,
	}
	t.Cleanup(func() { config.AppConfig = prev })

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "unihub.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.MigrateDB(db))

	env := &testEnv{
		t:      t,
		db:     db,
		mailer: &fakeMailer{},
		media:  &fakeMedia{},
		hub:    utils.NewSeatHub(),
	}
	env.app = routes.NewApp(routes.Dependencies{
		DB:     db,
		Mailer: env.mailer,
		Media:  env.media,
		Hub:    env.hub,
	})
	return env
}

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Errors     []string        `json:"errors"`
}

type response struct {
	*http.Response
	env envelope
}

func (r response) decode(t *testing.T, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.env.Data, dst))
}

func (e *testEnv) send(req *http.Request, token string) response {
	e.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	out := response{Response: resp}
	if len(raw) > 0 {
		require.NoError(e.t, json.Unmarshal(raw, &out.env), string(raw))
	}
	return out
}

func (e *testEnv) do(method, path string, body interface{}, token string) response {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req, token)
}

type upload struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

func (e *testEnv) multipart(method, path string, values map[string]string, file *upload, token string) response {
	e.t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range values {
		require.NoError(e.t, w.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, file.field, file.filename))
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		require.NoError(e.t, err)
		_, err = part.Write(file.content)
		require.NoError(e.t, err)
	}
	require.NoError(e.t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.send(req, token)
}

var seq int

// createUser stores a verified, active account and returns it with an
// access token.
func (e *testEnv) createUser(name string) (*models.User, string) {
	e.t.Helper()
	seq++
	user := models.User{
		FullName:        name,
		Email:           fmt.Sprintf("%s%d@uni.edu", strings.ToLower(name), seq),
		USN:             fmt.Sprintf("1UH21CS%03d", seq),
		Semester:        "5",
		Department:      "CSE",
		IsEmailVerified: true,
		IsActive:        true,
	}
	require.NoError(e.t, user.SetPassword("Str0ng@pass"))
	require.NoError(e.t, e.db.Create(&user).Error)

	tokens, err := utils.GenerateTokens(&user)
	require.NoError(e.t, err)
	return &user, tokens.AccessToken
}

func members(n int) []models.TeamMember {
	out := make([]models.TeamMember, n)
	for i := range out {
		out[i] = models.TeamMember{
			FullName:        fmt.Sprintf("Member %d", i+1),
			USN:             fmt.Sprintf("1uh21ec%03d", i+1),
			CurrentSemester: 3,
			Department:      "ECE",
		}
	}
	return out
}

func (e *testEnv) createTeam(leader *models.User, name string, size int) *models.Team {
	e.t.Helper()
	team := models.Team{
		TeamName:     name,
		TeamLeaderID: leader.ID,
		Members:      members(size),
		IsActive:     true,
	}
	require.NoError(e.t, e.db.Create(&team).Error)
	return &team
}

func (e *testEnv) createEvent(creator *models.User, mutate func(ev *models.Event)) *models.Event {
	e.t.Helper()
	ev := models.Event{
		Name:        "Code Sprint",
		Description: "A timed coding contest",
		Category:    []string{"tech"},
		Date:        time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		StartTime:   "10:00",
		EndTime:     "16:00",
		Location:    "Lab 3",
		MaxSeats:    5,
		MinTeamSize: 1,
		PosterImage: "https://cdn.test/poster.png",
		Status:      models.EventLive,
		CreatedByID: creator.ID,
		IsActive:    true,
	}
	if mutate != nil {
		mutate(&ev)
	}
	require.NoError(e.t, e.db.Create(&ev).Error)
	return &ev
}

func (e *testEnv) reloadEvent(id uint) models.Event {
	e.t.Helper()
	var ev models.Event
	require.NoError(e.t, e.db.First(&ev, id).Error)
	return ev
}

func (e *testEnv) reloadTeam(id uint) models.Team {
	e.t.Helper()
	var tm models.Team
	require.NoError(e.t, e.db.First(&tm, id).Error)
	return tm
}
