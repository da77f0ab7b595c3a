// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"codeberg.org/willtank/willtank/internal/auth"
	"codeberg.org/willtank/willtank/internal/config"
	"codeberg.org/willtank/willtank/internal/handlers"
	"codeberg.org/willtank/willtank/internal/htmx"
	"codeberg.org/willtank/willtank/internal/i18n"
	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/services/access"
	authsvc "codeberg.org/willtank/willtank/internal/services/auth"
	"codeberg.org/willtank/willtank/internal/services/checkin"
	"codeberg.org/willtank/willtank/internal/services/email"
	"codeberg.org/willtank/willtank/internal/services/session"
	"codeberg.org/willtank/willtank/internal/services/verification"
	"codeberg.org/willtank/willtank/internal/sse"
	"codeberg.org/willtank/willtank/internal/storage"
	"codeberg.org/willtank/willtank/internal/testutil"
)

const baseURL = "http://localhost:8080"

func init() {
	// Initialize i18n for template rendering
	_ = i18n.Init()
}

type fixture struct {
	e       *echo.Echo
	h       *handlers.Handlers
	repo    *repository.Repository
	clock   *testutil.Clock
	mailbox *testutil.Mailbox
	store   *storage.Local
	svc     *verification.Service
	user    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	f := &fixture{e: echo.New(), repo: repo, clock: testutil.NewClock(), mailbox: testutil.NewMailbox()}

	cfg := &config.VerificationConfig{
		DefaultFrequencyDays: 30,
		DefaultGraceDays:     7,
		RequestTTL:           7 * 24 * time.Hour,
		AccessTTL:            time.Hour,
		RevokeAfterDownload:  5 * time.Minute,
		DistributeOnDetect:   true,
	}
	store, err := storage.NewLocal(t.TempDir(), baseURL)
	require.NoError(t, err)
	f.store = store

	gate := access.NewGate(repo, store, cfg, access.WithClock(f.clock.Now))
	f.svc = verification.NewService(repo, email.NewService(f.mailbox, baseURL), gate, cfg,
		verification.WithClock(f.clock.Now))
	checkins := checkin.NewService(repo, cfg, checkin.WithClock(f.clock.Now), checkin.WithCanceller(f.svc))
	sessions, err := session.NewManager(&config.SessionConfig{
		CookieName: "_session",
		MaxAge:     3600,
		HashKey:    "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}, false)
	require.NoError(t, err)

	f.h = handlers.New(handlers.Deps{
		Repo:         repo,
		Auth:         authsvc.NewService(repo, checkins),
		Sessions:     sessions,
		Checkins:     checkins,
		Verification: f.svc,
		Gate:         gate,
		Store:        store,
		Hub:          sse.NewHub(),
	})
	f.user = testutil.NewTestUser(t, repo, "ada@example.com")
	return f
}

// request builds a context for a direct handler call. Owner routes get the
// fixture's user in the request context.
func (f *fixture) request(method, target, body string, owner bool) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	ctx := i18n.WithLocale(req.Context(), language.English)
	if owner {
		ctx = auth.WithUser(ctx, f.user)
	}
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return f.e.NewContext(req, rec), rec
}

func (f *fixture) form(target string, values url.Values) (echo.Context, *httptest.ResponseRecorder) {
	c, rec := f.request(http.MethodPost, target, values.Encode(), false)
	c.Request().Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return c, rec
}

// pinsSent opens a verification for the fixture's user with three contacts,
// a will and one document, and distributes the PINs.
func (f *fixture) pinsSent(t *testing.T) (*models.VerificationRequest, []string) {
	t.Helper()
	ctx := context.Background()
	testutil.NewTestContact(t, f.repo, f.user.ID, "executor", models.ContactExecutor)
	testutil.NewTestContact(t, f.repo, f.user.ID, "beneficiary", models.ContactBeneficiary)
	testutil.NewTestContact(t, f.repo, f.user.ID, "trusted", models.ContactTrusted)
	testutil.NewTestSettings(t, f.repo, f.user.ID, 7, 2, f.clock.Now())

	require.NoError(t, f.repo.UpsertWill(ctx, &models.Will{
		UserID: f.user.ID, Title: "Last will", Content: "Everything to the cats.", UpdatedAt: f.clock.Now(),
	}))
	key := storage.NewKey(f.user.ID, f.clock.Now())
	require.NoError(t, f.store.Put(ctx, key, strings.NewReader("deed-bytes"), 10, "application/pdf"))
	require.NoError(t, f.repo.CreateDocument(ctx, &models.Document{
		UserID: f.user.ID, Name: "deed.pdf", ContentType: "application/pdf", Size: 10, StorageKey: key,
	}))

	f.clock.Advance(10 * 24 * time.Hour)
	outcome, err := f.svc.ScanUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, verification.OutcomeOpened, outcome)

	req, err := f.repo.GetLatestVerificationRequest(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPinsSent, req.Status)

	pins, err := f.repo.ListPins(ctx, req.ID)
	require.NoError(t, err)
	codes := make([]string, len(pins))
	for i, p := range pins {
		codes[i] = p.PinCode
	}
	return req, codes
}

func submitBody(t *testing.T, id string, pins []string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{"verificationId": id, "pins": pins})
	require.NoError(t, err)
	return string(b)
}

// unlock submits the right PINs and returns the access token.
func (f *fixture) unlock(t *testing.T, id string, pins []string) string {
	t.Helper()
	c, rec := f.request(http.MethodPost, "/api/submit-executor-pins", submitBody(t, id, pins), false)
	require.NoError(t, f.h.SubmitPins(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res verification.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Success)
	require.NotEmpty(t, res.AccessToken)
	return res.AccessToken
}

func TestHealth(t *testing.T) {
	h := handlers.New(handlers.Deps{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Health(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHome(t *testing.T) {
	f := newFixture(t)
	c, rec := f.request(http.MethodGet, "/", "", false)

	require.NoError(t, f.h.Home(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<html")
	assert.Contains(t, rec.Body.String(), `href="/auth/login"`)
}

func TestSettings(t *testing.T) {
	f := newFixture(t)

	c, rec := f.request(http.MethodGet, "/api/me/settings", "", true)
	require.NoError(t, f.h.GetSettings(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"checkInFrequencyDays":30`)

	c, rec = f.request(http.MethodPut, "/api/me/settings", `{"checkInFrequencyDays":0}`, true)
	require.NoError(t, f.h.UpdateSettings(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	c, rec = f.request(http.MethodPut, "/api/me/settings",
		`{"checkInFrequencyDays":14,"notificationChannels":["email","sms"]}`, true)
	require.NoError(t, f.h.UpdateSettings(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"checkInFrequencyDays":14`)
	assert.Contains(t, rec.Body.String(), `"notificationChannels":["email","sms"]`)
}

func TestCheckIn(t *testing.T) {
	f := newFixture(t)

	c, rec := f.request(http.MethodPost, "/api/me/checkin", "", true)
	require.NoError(t, f.h.CheckIn(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var record models.CheckinRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, models.CheckinAlive, record.Status)
	assert.True(t, record.NextCheckIn.After(record.CheckedInAt))
}

func TestCheckIn_CancelsOpenVerification(t *testing.T) {
	f := newFixture(t)
	req, _ := f.pinsSent(t)

	c, rec := f.request(http.MethodPost, "/api/me/checkin", "", true)
	require.NoError(t, f.h.CheckIn(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	got, err := f.repo.GetVerificationRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
}

func TestCheckIn_RevokesUnlockedAccess(t *testing.T) {
	f := newFixture(t)
	req, pins := f.pinsSent(t)
	token := f.unlock(t, req.ID, pins)

	c, rec := f.request(http.MethodPost, "/api/me/checkin", "", true)
	require.NoError(t, f.h.CheckIn(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, rec = f.request(http.MethodPost, "/api/get-executor-documents", `{"verificationId":"`+req.ID+`"}`, false)
	c.Request().Header.Set(handlers.AccessTokenHeader, token)
	require.NoError(t, f.h.ExecutorDocuments(c))
	assert.Equal(t, http.StatusGone, rec.Code)

	logs, err := f.repo.ListAuditLogs(context.Background(), f.user.ID)
	require.NoError(t, err)
	actions := make([]string, len(logs))
	for i, l := range logs {
		actions[i] = l.Action
	}
	assert.Contains(t, actions, models.AuditAccessRevoked)
}

func TestContacts(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing name", `{"email":"bob@example.com","contact_type":"executor"}`, http.StatusBadRequest},
		{"bad email", `{"name":"Bob","email":"bob","contact_type":"executor"}`, http.StatusBadRequest},
		{"unknown type", `{"name":"Bob","email":"bob@example.com","contact_type":"lawyer"}`, http.StatusBadRequest},
		{"valid", `{"name":"Bob","email":"Bob@Example.com","contact_type":"executor"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := f.request(http.MethodPost, "/api/me/contacts", tt.body, true)
			require.NoError(t, f.h.CreateContact(c))
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	c, rec := f.request(http.MethodGet, "/api/me/contacts", "", true)
	require.NoError(t, f.h.ListContacts(c))
	var list []models.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "bob@example.com", list[0].Email)

	c, rec = f.request(http.MethodGet, "/", "", true)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(list[0].ID))
	require.NoError(t, f.h.GetContact(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"bob@example.com"`)

	other := testutil.NewTestUser(t, f.repo, "eve@example.com")
	foreign := testutil.NewTestContact(t, f.repo, other.ID, "mallory", models.ContactTrusted)
	c, rec = f.request(http.MethodGet, "/", "", true)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(foreign.ID))
	require.NoError(t, f.h.GetContact(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = f.request(http.MethodDelete, "/", "", true)
	c.SetParamNames("id")
	c.SetParamValues("999")
	require.NoError(t, f.h.DeleteContact(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWill(t *testing.T) {
	f := newFixture(t)

	c, rec := f.request(http.MethodGet, "/api/me/will", "", true)
	require.NoError(t, f.h.GetWill(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = f.request(http.MethodPut, "/api/me/will", `{"title":"My will","content":"All to the library."}`, true)
	require.NoError(t, f.h.PutWill(c))
	require.Equal(t, http.StatusOK, rec.Code)

	c, rec = f.request(http.MethodGet, "/api/me/will", "", true)
	require.NoError(t, f.h.GetWill(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "All to the library.")
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "../../deed.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("deed-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	c, rec := f.request(http.MethodPost, "/api/me/documents", "", true)
	c.Request().Body = io.NopCloser(&body)
	c.Request().Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	require.NoError(t, f.h.UploadDocument(c))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var doc models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "deed.pdf", doc.Name)
	assert.Equal(t, int64(10), doc.Size)
	assert.NotContains(t, rec.Body.String(), "users/", "storage key must not leak")

	c, rec = f.request(http.MethodGet, "/api/me/documents", "", true)
	require.NoError(t, f.h.ListDocuments(c))
	assert.Contains(t, rec.Body.String(), "deed.pdf")
}

func TestExecutorFlow(t *testing.T) {
	f := newFixture(t)
	req, pins := f.pinsSent(t)
	require.Len(t, pins, 3)

	// status
	c, rec := f.request(http.MethodPost, "/api/check-executor-verification",
		`{"verificationId":"`+req.ID+`"}`, false)
	require.NoError(t, f.h.CheckVerification(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var status verification.StatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 3, status.PinsRequired)
	assert.Equal(t, 3, status.PinsReceived)
	assert.Equal(t, models.StatusPinsSent, status.Status)
	assert.Equal(t, "executor", status.ExecutorName)

	// one wrong PIN
	wrong := append([]string(nil), pins...)
	wrong[1] = "not-a-pin"
	c, rec = f.request(http.MethodPost, "/api/submit-executor-pins", submitBody(t, req.ID, wrong), false)
	require.NoError(t, f.h.SubmitPins(c))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"success":false,"invalidPins":[1]}`, rec.Body.String())

	// wrong count
	c, rec = f.request(http.MethodPost, "/api/submit-executor-pins", submitBody(t, req.ID, pins[:2]), false)
	require.NoError(t, f.h.SubmitPins(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	token := f.unlock(t, req.ID, pins)

	// documents need the token
	c, rec = f.request(http.MethodPost, "/api/get-executor-documents", `{"verificationId":"`+req.ID+`"}`, false)
	require.NoError(t, f.h.ExecutorDocuments(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = f.request(http.MethodPost, "/api/get-executor-documents", `{"verificationId":"`+req.ID+`"}`, false)
	c.Request().Header.Set(handlers.AccessTokenHeader, token)
	require.NoError(t, f.h.ExecutorDocuments(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var listing access.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Documents, 1)
	require.NotNil(t, listing.Will)
	assert.Equal(t, "Last will", listing.Will.Title)

	// download link served by the local driver
	c, rec = f.request(http.MethodPost, "/api/get-document-download-url",
		`{"verificationId":"`+req.ID+`","documentId":`+jsonInt(listing.Documents[0].ID)+`}`, false)
	c.Request().Header.Set(handlers.AccessTokenHeader, token)
	require.NoError(t, f.h.DocumentDownloadURL(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var link struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
	require.True(t, strings.HasPrefix(link.URL, baseURL+storage.LinkPath+"?t="), link.URL)

	c, rec = f.request(http.MethodGet, strings.TrimPrefix(link.URL, baseURL), "", false)
	require.NoError(t, f.h.File(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deed-bytes", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "deed.pdf")

	// bulk download revokes access shortly after
	c, rec = f.request(http.MethodPost, "/api/get-all-documents-zip", `{"verificationId":"`+req.ID+`"}`, false)
	c.Request().Header.Set(handlers.AccessTokenHeader, token)
	require.NoError(t, f.h.DocumentsZip(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "Test User-documents.zip")

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	assert.ElementsMatch(t, []string{"will.txt", "documents/deed.pdf"}, names)

	f.clock.Advance(6 * time.Minute)
	c, rec = f.request(http.MethodPost, "/api/get-executor-documents", `{"verificationId":"`+req.ID+`"}`, false)
	c.Request().Header.Set(handlers.AccessTokenHeader, token)
	require.NoError(t, f.h.ExecutorDocuments(c))
	assert.Equal(t, http.StatusGone, rec.Code)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestCheckVerification_Errors(t *testing.T) {
	f := newFixture(t)

	c, rec := f.request(http.MethodPost, "/api/check-executor-verification", `{}`, false)
	require.NoError(t, f.h.CheckVerification(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = f.request(http.MethodPost, "/api/check-executor-verification", `{"verificationId":"nope"}`, false)
	require.NoError(t, f.h.CheckVerification(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"verification request not found"}`, rec.Body.String())
}

func TestPortal(t *testing.T) {
	f := newFixture(t)
	req, pins := f.pinsSent(t)

	c, rec := f.request(http.MethodGet, "/verify/"+req.ID, "", false)
	c.SetParamNames("id")
	c.SetParamValues(req.ID)
	require.NoError(t, f.h.PortalPage(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, strings.Count(rec.Body.String(), `name="pins"`))
	assert.Contains(t, rec.Body.String(), `sse-connect="/verify/`+req.ID+`/events"`)

	t.Run("wrong PIN is marked", func(t *testing.T) {
		values := url.Values{"pins": {pins[0], "000000x", pins[2]}}
		c, rec := f.form("/verify/"+req.ID+"/pins", values)
		c.SetParamNames("id")
		c.SetParamValues(req.ID)
		require.NoError(t, f.h.PortalSubmitPins(c))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, 1, strings.Count(rec.Body.String(), `class="pin invalid"`))
	})

	t.Run("htmx gets the form with 200", func(t *testing.T) {
		values := url.Values{"pins": {"1", "2", "3"}}
		c, rec := f.form("/verify/"+req.ID+"/pins", values)
		c.Request().Header.Set(htmx.HeaderRequest, "true")
		c.SetParamNames("id")
		c.SetParamValues(req.ID)
		require.NoError(t, f.h.PortalSubmitPins(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, strings.Count(rec.Body.String(), `class="pin invalid"`))
	})

	t.Run("right PINs unlock", func(t *testing.T) {
		values := url.Values{"pins": pins}
		c, rec := f.form("/verify/"+req.ID+"/pins", values)
		c.SetParamNames("id")
		c.SetParamValues(req.ID)
		require.NoError(t, f.h.PortalSubmitPins(c))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Everything to the cats.")
		assert.Contains(t, rec.Body.String(), "deed.pdf")
		assert.Contains(t, rec.Body.String(), `/verify/`+req.ID+`/zip`)
	})

	t.Run("status after unlock", func(t *testing.T) {
		c, rec := f.request(http.MethodGet, "/verify/"+req.ID+"/status", "", false)
		c.SetParamNames("id")
		c.SetParamValues(req.ID)
		require.NoError(t, f.h.PortalStatus(c))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "status-will_unlocked")
	})
}

func TestPortal_UnknownRequestWithHtmx(t *testing.T) {
	f := newFixture(t)

	c, rec := f.request(http.MethodGet, "/verify/nope/status", "", false)
	c.Request().Header.Set(htmx.HeaderRequest, "true")
	c.SetParamNames("id")
	c.SetParamValues("nope")
	require.NoError(t, f.h.PortalStatus(c))
	assert.Equal(t, "/", rec.Header().Get(htmx.HeaderRedirect))
}

func TestPortalDownload_RequiresToken(t *testing.T) {
	f := newFixture(t)
	req, pins := f.pinsSent(t)
	token := f.unlock(t, req.ID, pins)

	docs, err := f.repo.ListDocuments(context.Background(), f.user.ID)
	require.NoError(t, err)
	docID := jsonInt(docs[0].ID)

	c, rec := f.form("/verify/"+req.ID+"/documents/"+docID, url.Values{"token": {"wrong"}})
	c.SetParamNames("id", "doc")
	c.SetParamValues(req.ID, docID)
	require.NoError(t, f.h.PortalDownload(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = f.form("/verify/"+req.ID+"/documents/"+docID, url.Values{"token": {token}})
	c.SetParamNames("id", "doc")
	c.SetParamValues(req.ID, docID)
	require.NoError(t, f.h.PortalDownload(c))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), baseURL+storage.LinkPath))
}

func TestFile_InvalidLink(t *testing.T) {
	f := newFixture(t)

	c, rec := f.request(http.MethodGet, "/files?t=forged", "", false)
	require.NoError(t, f.h.File(c))
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestTriggerVerification(t *testing.T) {
	f := newFixture(t)

	c, rec := f.request(http.MethodPost, "/api/trigger-death-verification", `{"userId":999}`, false)
	require.NoError(t, f.h.TriggerVerification(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	testutil.NewTestContact(t, f.repo, f.user.ID, "executor", models.ContactExecutor)
	c, rec = f.request(http.MethodPost, "/api/trigger-death-verification", `{"userId":`+jsonInt(f.user.ID)+`}`, false)
	require.NoError(t, f.h.TriggerVerification(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pins_sent"`)
	assert.Len(t, f.mailbox.To("executor@example.com"), 2, "PIN and portal notice")
}

func TestSendPin(t *testing.T) {
	f := newFixture(t)
	req, _ := f.pinsSent(t)
	pins, err := f.repo.ListPins(context.Background(), req.ID)
	require.NoError(t, err)

	c, rec := f.request(http.MethodPost, "/api/send-executor-pin", `{"verificationId":"`+req.ID+`"}`, false)
	require.NoError(t, f.h.SendPin(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"verificationId":"` + req.ID + `","contactId":` + jsonInt(pins[1].ContactID) + `}`
	c, rec = f.request(http.MethodPost, "/api/send-executor-pin", body, false)
	require.NoError(t, f.h.SendPin(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	f.mailbox.FailFor(pins[1].ContactEmail)
	c, rec = f.request(http.MethodPost, "/api/send-executor-pin", body, false)
	require.NoError(t, f.h.SendPin(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestTestExecutorAccess_Disabled(t *testing.T) {
	f := newFixture(t)

	c, rec := f.request(http.MethodPost, "/api/test-executor-access", `{"action":"setup_test_data"}`, false)
	require.NoError(t, f.h.TestExecutorAccess(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents(t *testing.T) {
	f := newFixture(t)
	req, _ := f.pinsSent(t)

	ctx, cancel := context.WithCancel(context.Background())
	c, rec := f.request(http.MethodGet, "/verify/"+req.ID+"/events", "", false)
	c.SetRequest(c.Request().WithContext(ctx))
	c.SetParamNames("id")
	c.SetParamValues(req.ID)

	// the initial event is written before the loop waits on ctx
	cancel()
	require.NoError(t, f.h.Events(c))

	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Body.String(), "event: status\n")
	assert.Contains(t, rec.Body.String(), `"status":"pins_sent"`)
	assert.Equal(t, 0, f.h.Hub.ClientCount())
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	c, rec := f.request(http.MethodPost, "/auth/register",
		`{"email":"grace@example.com","name":"Grace","password":"short"}`, false)
	require.NoError(t, f.h.Register(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = f.request(http.MethodPost, "/auth/register",
		`{"email":"grace@example.com","name":"Grace","password":"correct horse battery"}`, false)
	require.NoError(t, f.h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())

	c, rec = f.request(http.MethodPost, "/auth/register",
		`{"email":"grace@example.com","name":"Grace","password":"correct horse battery"}`, false)
	require.NoError(t, f.h.Register(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = f.form("/auth/login", url.Values{"email": {"grace@example.com"}, "password": {"wrong password!"}})
	require.NoError(t, f.h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "<form")

	c, rec = f.request(http.MethodPost, "/auth/login",
		`{"email":"grace@example.com","password":"correct horse battery"}`, false)
	require.NoError(t, f.h.Login(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())
}
