package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-core/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-core/internal/service/permission"
)

type fakeAttendance struct {
	punchActor user.Actor
	punchReq   attendance.PunchRequest
	filter     attendance.RecordFilter
	records    []attendance.Record
}

func (f *fakeAttendance) Punch(ctx context.Context, actor user.Actor, req attendance.PunchRequest) (attendance.Record, error) {
	f.punchActor, f.punchReq = actor, req
	return attendance.Record{ID: "rec-1", OrgID: req.OrgID, UserID: req.UserID, Status: attendance.StatusNormal,
		WorkDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeAttendance) ListRecords(ctx context.Context, actor user.Actor, filter attendance.RecordFilter) ([]attendance.Record, error) {
	f.filter = filter
	return f.records, nil
}

type fakeImporter struct {
	req     attendance.ImportRequest
	content string
}

func (f *fakeImporter) Import(ctx context.Context, actor user.Actor, req attendance.ImportRequest) (attendance.ImportResult, error) {
	f.req = req
	b, _ := io.ReadAll(req.Reader)
	f.content = string(b)
	return attendance.ImportResult{Total: 2, Succeeded: 1, Failed: 1, Errors: []attendance.RowError{{Row: 3, Message: "user_id is required"}}}, nil
}

type fakeApprovals struct {
	approval.Service
	resolved approval.ResolveRequest
	err      error
}

func (f *fakeApprovals) Approve(ctx context.Context, actor user.Actor, req approval.ResolveRequest) (approval.Request, error) {
	f.resolved = req
	if f.err != nil {
		return approval.Request{}, f.err
	}
	return approval.Request{ID: req.RequestID, Status: approval.StatusApproved}, nil
}

type fakeRules struct {
	ruleset.Service
	saved []byte
}

func (f *fakeRules) Save(ctx context.Context, actor user.Actor, orgID string, raw []byte) (*ruleset.Compiled, error) {
	f.saved = raw
	return &ruleset.Compiled{OrgID: orgID, Version: 2}, nil
}

type fakeHolidays struct {
	schedule.HolidayService
	working bool
	body    string
}

func (f *fakeHolidays) ImportICS(ctx context.Context, actor user.Actor, r io.Reader, working bool) (schedule.ImportHolidaysResponse, error) {
	b, _ := io.ReadAll(r)
	f.body, f.working = string(b), working
	return schedule.ImportHolidaysResponse{Imported: 1}, nil
}

type fakeSettings struct{ settings.Service }

type testServer struct {
	handler    http.Handler
	jwt        jwt.Service
	attendance *fakeAttendance
	importer   *fakeImporter
	approvals  *fakeApprovals
	rules      *fakeRules
	holidays   *fakeHolidays
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &testServer{
		jwt:        jwt.NewJWTService("test-secret-key-for-jwt", time.Hour),
		attendance: &fakeAttendance{},
		importer:   &fakeImporter{},
		approvals:  &fakeApprovals{},
		rules:      &fakeRules{},
		holidays:   &fakeHolidays{},
	}
	s.handler = NewRouter(RouterOptions{},
		s.jwt,
		NewAttendanceHandler(s.attendance, s.importer, sse.NewHub()),
		NewRequestHandler(s.approvals),
		NewConfigHandler(s.rules, s.holidays, fakeSettings{}, permission.NewGate(false, logger)),
	)
	return s
}

func (s *testServer) token(t *testing.T, userID string, role user.Role) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(userID, "org-1", role)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var body response.Response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestPunch(t *testing.T) {
	s := newTestServer(t)

	t.Run("requires a token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/punch", bytes.NewBufferString(`{}`))
		rec, body := s.do(t, req, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
	})

	t.Run("defaults the user to the caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/punch",
			bytes.NewBufferString(`{"type":"check_in","occurred_at":"2024-03-04T09:00:00+07:00"}`))
		req.RemoteAddr = "10.0.0.7:52311"
		rec, body := s.do(t, req, s.token(t, "emp-1", user.RoleEmployee))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, body.Success)
		assert.Equal(t, "org-1", s.attendance.punchReq.OrgID)
		assert.Equal(t, "emp-1", s.attendance.punchReq.UserID)
		assert.Equal(t, "10.0.0.7", s.attendance.punchReq.IP)
		assert.Equal(t, user.RoleEmployee, s.attendance.punchActor.Role)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/punch", bytes.NewBufferString(`{`))
		rec, _ := s.do(t, req, s.token(t, "emp-1", user.RoleEmployee))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListRecords(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "mgr-1", user.RoleManager)

	t.Run("parses the filter", func(t *testing.T) {
		s.attendance.records = []attendance.Record{{ID: "rec-1", WorkDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/records?user_id=emp-1&from=2024-03-01&to=2024-03-31&limit=50", nil)
		rec, body := s.do(t, req, token)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "emp-1", s.attendance.filter.UserID)
		assert.Equal(t, 50, s.attendance.filter.Limit)
		require.NotNil(t, s.attendance.filter.From)
		assert.Equal(t, "2024-03-01", s.attendance.filter.From.Format("2006-01-02"))
		assert.Len(t, body.Data, 1)
		require.NotNil(t, body.Meta)
		assert.Equal(t, response.Meta{From: "2024-03-01", To: "2024-03-31", Limit: 50, Count: 1}, *body.Meta)
	})

	t.Run("rejects a bad date", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/records?from=03/01/2024", nil)
		rec, body := s.do(t, req, token)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, body.Error.Details, "from")
	})
}

func TestImport(t *testing.T) {
	s := newTestServer(t)
	buf, contentType := multipartBody(t, "march.csv", "user_id,work_date\nemp-1,2024-03-04\n", map[string]string{"mode": "override"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/import", buf)
	req.Header.Set("Content-Type", contentType)
	rec, body := s.do(t, req, s.token(t, "mgr-1", user.RoleManager))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Imported 1 of 2 rows", body.Message)
	assert.Equal(t, "march.csv", s.importer.req.Filename)
	assert.Equal(t, attendance.ModeOverride, s.importer.req.Mode)
	assert.Equal(t, "org-1", s.importer.req.OrgID)
	assert.Contains(t, s.importer.content, "emp-1,2024-03-04")
}

func TestApproveRequest(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "mgr-1", user.RoleManager)
	id := "7d4b6f0e-8f6c-4f1e-9a57-0c1f3f7d2a10"

	t.Run("passes the path id and comment", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/requests/"+id+"/approve", bytes.NewBufferString(`{"comment":"ok"}`))
		rec, body := s.do(t, req, token)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Request approved", body.Message)
		assert.Equal(t, id, s.approvals.resolved.RequestID)
		assert.Equal(t, "ok", s.approvals.resolved.Comment)
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/requests/"+id+"/approve", nil)
		rec, _ := s.do(t, req, token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, s.approvals.resolved.Comment)
	})

	t.Run("maps service errors", func(t *testing.T) {
		s.approvals.err = approval.ErrNotPending
		defer func() { s.approvals.err = nil }()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/requests/"+id+"/approve", nil)
		rec, body := s.do(t, req, token)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.False(t, body.Success)
	})
}

func TestSaveRuleSet(t *testing.T) {
	s := newTestServer(t)
	doc := `{"version":2,"field_mappings":{"NIK":"user_id"}}`

	req := httptest.NewRequest(http.MethodPut, "/api/v1/rulesets", bytes.NewBufferString(doc))
	rec, body := s.do(t, req, s.token(t, "own-1", user.RoleOwner))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, doc, string(s.rules.saved))
	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), data["version"])
}

func TestGetRuleSet_RequiresPermission(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rulesets", nil)
	rec, body := s.do(t, req, s.token(t, "emp-1", user.RoleEmployee))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)
}

func TestImportHolidays(t *testing.T) {
	s := newTestServer(t)
	buf, contentType := multipartBody(t, "id.ics", "BEGIN:VCALENDAR\nEND:VCALENDAR\n", map[string]string{"working": "true"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/holidays/import", buf)
	req.Header.Set("Content-Type", contentType)
	rec, _ := s.do(t, req, s.token(t, "own-1", user.RoleOwner))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.holidays.working)
	assert.Contains(t, s.holidays.body, "BEGIN:VCALENDAR")
}
