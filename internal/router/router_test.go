package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/flashcal/config"
	"github.com/weiwangfds/flashcal/internal/database"
	apperrors "github.com/weiwangfds/flashcal/internal/errors"
	"github.com/weiwangfds/flashcal/internal/middleware"
	"github.com/weiwangfds/flashcal/internal/service/backup"
	"github.com/weiwangfds/flashcal/internal/service/mirror"
	"github.com/weiwangfds/flashcal/internal/service/store"
)

const (
	localMirror = "/data/mirror/flash-calendar-mirror.json"
	shellOrigin = "http://localhost:5173"
)

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Details   string          `json:"details"`
	RequestID string          `json:"request_id"`
}

type testServer struct {
	engine     *gin.Engine
	fs         afero.Fs
	store      *store.GormStore
	replicator *mirror.Replicator
}

func newTestServer(t *testing.T, restricted bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(config.DatabaseConfig{
		DSN:      filepath.Join(t.TempDir(), "router.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/ext", 0o755))

	cfg := &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{shellOrigin}},
		Mirror: config.MirrorConfig{
			Enabled:    true,
			ExportDir:  "/exports",
			Restricted: restricted,
		},
	}
	s := store.New(db)
	r := mirror.NewReplicator(cfg.Mirror, mirror.NewLocalMirror(fs, localMirror), s, &mirror.DefaultTargetFactory{Fs: fs})
	s.SetReplicator(r)
	t.Cleanup(r.Wait)

	rt := NewRouter(middleware.NewLoggerMiddleware(), &Dependencies{
		Config:     cfg,
		DB:         db,
		Store:      s,
		Backup:     backup.NewService(s, fs),
		Replicator: r,
		Fs:         fs,
	})
	return &testServer{engine: rt.GetEngine(), fs: fs, store: s, replicator: r}
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "flashcal_http_requests_total")
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodGet, "/api/v1/plans", nil, middleware.RequestIDHeader, "req-1")
	assert.Equal(t, "req-1", w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "req-1", decode(t, w).RequestID)

	w = ts.do(t, http.MethodGet, "/api/v1/plans", nil)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestSaveAndGetPlans(t *testing.T) {
	ts := newTestServer(t, false)

	body := []byte(`{
		"plans": [
			{"id": "a", "title": "写周报", "status": "todo", "tags": ["工作"]},
			{"title": "没有ID"},
			{"id": "b", "title": "跑步", "status": "done"}
		],
		"settings": {"theme": "dark"}
	}`)
	w := ts.do(t, http.MethodPut, "/api/v1/plans", body, "Accept-Language", "en-US,en;q=0.9")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, "Plans saved", env.Message)

	var saved []database.WorkPlan
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	require.Len(t, saved, 2)
	assert.Equal(t, "a", saved[0].ID)
	assert.Equal(t, "b", saved[1].ID)

	w = ts.do(t, http.MethodGet, "/api/v1/plans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []database.WorkPlan
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Len(t, got, 2)

	ts.replicator.Wait()
	data, err := afero.ReadFile(ts.fs, localMirror)
	require.NoError(t, err)
	bundle, err := backup.Decode(data)
	require.NoError(t, err)
	assert.Len(t, bundle.Plans, 2)
	assert.JSONEq(t, `{"theme":"dark"}`, string(bundle.Settings))
}

func TestSavePlansRejectsBadBody(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPut, "/api/v1/plans", []byte(`{"plans": "nope"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int(apperrors.ErrInvalidParams), decode(t, w).Code)

	w = ts.do(t, http.MethodPut, "/api/v1/plans", []byte(`{"plans": [], "settings": {bad}}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWeeklyReportLifecycle(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/v1/reports/weekly",
		[]byte(`{"summary": "本周完成迁移", "achievements": ["上线", 3], "risks": ""}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report database.WeeklyReportData
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &report))
	assert.NotEmpty(t, report.ID)
	assert.Positive(t, report.Timestamp)
	assert.Equal(t, database.DefaultRisks, report.Risks)
	assert.Equal(t, []string{"上线", "3"}, report.Achievements)

	w = ts.do(t, http.MethodGet, "/api/v1/reports/weekly", nil)
	var list []database.WeeklyReportData
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, report.ID, list[0].ID)

	w = ts.do(t, http.MethodDelete, "/api/v1/reports/weekly/"+report.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/v1/reports/weekly/"+report.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, int(apperrors.ErrNotFound), decode(t, w).Code)
}

func TestMonthlyReportIsNormalizedBeforeSave(t *testing.T) {
	ts := newTestServer(t, false)

	body := []byte(`{"id": "m1", "timestamp": 1717900000000, "grade": "B",
		"patterns": ["晚上效率更高"], "candidAdvice": "少开会"}`)

	w := ts.do(t, http.MethodPost, "/api/v1/normalize/monthly", body)
	require.Equal(t, http.StatusOK, w.Code)
	var preview database.MonthlyAnalysisData
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &preview))
	require.Len(t, preview.Patterns, 1)
	assert.Equal(t, "晚上效率更高", preview.Patterns[0].Description)

	w = ts.do(t, http.MethodGet, "/api/v1/reports/monthly", nil)
	var list []database.MonthlyAnalysisData
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Empty(t, list)

	w = ts.do(t, http.MethodPost, "/api/v1/reports/monthly", body)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/reports/monthly", nil)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "m1", list[0].ID)
	assert.Equal(t, preview.Patterns, list[0].Patterns)
	assert.Equal(t, preview.CandidAdvice, list[0].CandidAdvice)
}

func TestClearAll(t *testing.T) {
	ts := newTestServer(t, false)
	ctx := context.Background()
	require.NoError(t, ts.store.SavePlans(ctx, []database.WorkPlan{{ID: "a", Title: "A"}}, nil))

	w := ts.do(t, http.MethodDelete, "/api/v1/data", nil)
	require.Equal(t, http.StatusOK, w.Code)

	plans, err := ts.store.GetAllPlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestBackupExportImportRestore(t *testing.T) {
	ts := newTestServer(t, false)
	ctx := context.Background()
	require.NoError(t, ts.store.SavePlans(ctx, []database.WorkPlan{{ID: "a", Title: "A"}}, nil))

	w := ts.do(t, http.MethodGet, "/api/v1/backup/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "flash-calendar-backup-")
	exported := w.Body.Bytes()

	w = ts.do(t, http.MethodPost, "/api/v1/backup/import", exported)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var bundle backup.BackupData
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &bundle))
	require.Len(t, bundle.Plans, 1)
	assert.Equal(t, "a", bundle.Plans[0].ID)

	// multipart 上传
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "backup.json")
	require.NoError(t, err)
	_, err = part.Write([]byte(`{"version": 1, "date": "2024-06-09T00:00:00Z", "plans": [{"id": "b", "title": "B"}]}`))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backup/restore?mode=merge", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	plans, err := ts.store.GetAllPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "a", plans[0].ID)
	assert.Equal(t, "b", plans[1].ID)
}

func TestImportRejectsInvalidContent(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/v1/backup/import", []byte(`{"plans": {}}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int(apperrors.ErrInvalidFormat), decode(t, w).Code)

	w = ts.do(t, http.MethodPost, "/api/v1/backup/import", []byte(`{"version": 999, "plans": []}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int(apperrors.ErrUnsupportedVersion), decode(t, w).Code)

	w = ts.do(t, http.MethodPost, "/api/v1/backup/restore?mode=sideways", []byte(`{"plans": []}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportToFile(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/v1/backup/export/file", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Path string `json:"path"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.True(t, strings.HasPrefix(data.Path, "/exports/"))
	exists, err := afero.Exists(ts.fs, data.Path)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMirrorLifecycle(t *testing.T) {
	ts := newTestServer(t, false)
	ctx := context.Background()

	w := ts.do(t, http.MethodPost, "/api/v1/mirror/request", []byte(`{"kind": "file", "path": ""}`))
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "已取消选择外部镜像", env.Message)
	assert.Empty(t, env.Data)

	w = ts.do(t, http.MethodPost, "/api/v1/mirror/request", []byte(`{"kind": "file", "path": "/ext"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status mirror.Status
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &status))
	require.NotNil(t, status.Handle)
	assert.Equal(t, "/ext/"+mirror.DefaultMirrorFileName, status.Handle.Location)
	assert.Equal(t, database.PermissionGranted, status.Permission)

	require.NoError(t, ts.store.SavePlans(ctx, []database.WorkPlan{{ID: "a", Title: "A"}}, nil))
	ts.replicator.Wait()
	exists, _ := afero.Exists(ts.fs, "/ext/"+mirror.DefaultMirrorFileName)
	assert.True(t, exists)

	w = ts.do(t, http.MethodGet, "/api/v1/mirror/snapshot?source=external", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bundle backup.BackupData
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &bundle))
	assert.Len(t, bundle.Plans, 1)

	w = ts.do(t, http.MethodDelete, "/api/v1/mirror", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/mirror", nil)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &status))
	require.NotNil(t, status.Handle)
	assert.Equal(t, database.PermissionDenied, status.Handle.Permission)

	w = ts.do(t, http.MethodDelete, "/api/v1/mirror?forget=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	handle, err := ts.store.GetFileMirrorHandle(ctx)
	require.NoError(t, err)
	assert.Nil(t, handle)
}

func TestMirrorRequestCapabilities(t *testing.T) {
	ts := newTestServer(t, false)
	// 没有对象存储工厂时对象存储目标不可用
	w := ts.do(t, http.MethodPost, "/api/v1/mirror/request",
		[]byte(`{"kind": "aliyun", "objectStore": {"bucket": "b", "accessKey": "ak"}}`))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, int(apperrors.ErrCapabilityUnsupported), decode(t, w).Code)

	restricted := newTestServer(t, true)
	w = restricted.do(t, http.MethodPost, "/api/v1/mirror/request", []byte(`{"kind": "file", "path": "/ext"}`))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, int(apperrors.ErrCapabilityDenied), decode(t, w).Code)
}

func TestCrossOriginRequestsAreLimitedToShell(t *testing.T) {
	ts := newTestServer(t, false)
	ctx := context.Background()
	require.NoError(t, ts.store.SavePlans(ctx, []database.WorkPlan{{ID: "a", Title: "A"}}, nil))

	w := ts.do(t, http.MethodDelete, "/api/v1/data", nil, "Origin", "http://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
	plans, err := ts.store.GetAllPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	w = ts.do(t, http.MethodOptions, "/api/v1/mirror/request", nil,
		"Origin", "http://evil.example", "Access-Control-Request-Method", http.MethodPost)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/plans", nil, "Origin", shellOrigin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, shellOrigin, w.Header().Get("Access-Control-Allow-Origin"))
}
