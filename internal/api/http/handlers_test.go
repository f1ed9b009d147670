package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/CometPilot/backend/internal/command"
	"github.com/GriffinCanCode/CometPilot/backend/internal/desktop"
	"github.com/GriffinCanCode/CometPilot/backend/internal/desktop/desktoptest"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/CometPilot/backend/internal/ocr"
	"github.com/GriffinCanCode/CometPilot/backend/internal/permissions"
	"github.com/GriffinCanCode/CometPilot/backend/internal/robot"
	"github.com/GriffinCanCode/CometPilot/backend/internal/sequencer"
	"github.com/GriffinCanCode/CometPilot/backend/internal/vision"
)

type stubOCR struct {
	words []ocr.Word
	seen  image.Image
}

func (s *stubOCR) Scan(context.Context, string) (*ocr.Scan, error) {
	return &ocr.Scan{
		Display: desktop.Display{ID: "0", Bounds: desktop.Rect{Width: 1920, Height: 1080}, Primary: true},
		Words:   s.words,
	}, nil
}

func (s *stubOCR) RecognizeImage(_ context.Context, img image.Image) ([]ocr.Word, error) {
	s.seen = img
	return s.words, nil
}

type stubClicker struct{}

func (stubClicker) OCRClick(_ context.Context, target string) vision.ClickResult {
	return vision.ClickResult{Success: true, ClickedText: target, Method: vision.MethodDirect}
}

type env struct {
	router   *gin.Engine
	perms    *permissions.Store
	fake     *desktoptest.Fake
	robot    *robot.Executor
	confirms *robot.Queue
	ocr      *stubOCR
}

func setup(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	perms := permissions.New(t.TempDir())
	fake := desktoptest.New()
	confirms := robot.NewQueue()
	exec := robot.New(fake, perms, robot.Config{MinDelay: 10 * time.Millisecond, Confirmer: confirms})
	o := &stubOCR{words: []ocr.Word{{Text: "Hello", Confidence: 91}, {Text: "world", Confidence: 88}}}

	handler := sequencer.HandlerFunc(func(_ context.Context, c command.Command) (string, error) {
		return "ok " + string(c.Type), nil
	})

	h := NewHandlers(Deps{
		Permissions:   perms,
		Robot:         exec,
		Confirmations: confirms,
		OCR:           o,
		Clicker:       stubClicker{},
		Queue:         sequencer.NewManager(handler, perms, nil, nil),
		Metrics:       monitoring.NewMetrics(),
	})
	r := gin.New()
	h.Register(r)
	return &env{router: r, perms: perms, fake: fake, robot: exec, confirms: confirms, ocr: o}
}

func (e *env) do(method, path string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func ptr(v float64) *float64 { return &v }

func TestHealth(t *testing.T) {
	e := setup(t)
	w := e.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string       `json:"status"`
		Robot  robot.Status `json:"robot"`
	}
	decode(t, w, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, body.Robot.Available)
	assert.False(t, body.Robot.Granted)

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/metrics", nil).Code)
}

func TestPermissionsLifecycle(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodPost, "/permissions", GrantRequest{Key: "robot", Level: permissions.LevelInteract, Description: "click things"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, e.perms.IsGranted("robot"))

	w = e.do(http.MethodGet, "/permissions", nil)
	var list struct {
		Permissions []permissions.Record `json:"permissions"`
	}
	decode(t, w, &list)
	require.Len(t, list.Permissions, 1)
	assert.Equal(t, "robot", list.Permissions[0].Key)

	w = e.do(http.MethodPost, "/permissions", GrantRequest{Key: "shell", Level: "root"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodDelete, "/permissions/robot", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, e.perms.IsGranted("robot"))

	require.NoError(t, e.perms.Grant("screen", permissions.LevelRead, "", false))
	e.do(http.MethodDelete, "/permissions", nil)
	assert.Empty(t, e.perms.All())
}

func TestAuditTailAndExport(t *testing.T) {
	e := setup(t)
	e.perms.LogAudit("first")
	e.perms.LogAudit("second")

	w := e.do(http.MethodGet, "/audit?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tail struct {
		Entries []permissions.AuditEntry `json:"entries"`
	}
	decode(t, w, &tail)
	require.Len(t, tail.Entries, 1)
	assert.Equal(t, "second", tail.Entries[0].Entry)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/audit?limit=abc", nil).Code)

	w = e.do(http.MethodGet, "/audit/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"first"`)
	assert.Contains(t, string(raw), `"second"`)
}

func TestRobotExecute(t *testing.T) {
	e := setup(t)
	scroll := ExecuteRequest{Action: robot.RawAction{Type: "scroll", X: ptr(10), Y: ptr(10), Direction: "down"}}

	w := e.do(http.MethodPost, "/robot/execute", scroll)
	assert.Equal(t, http.StatusForbidden, w.Code)

	require.NoError(t, e.perms.Grant(command.KeyRobot, permissions.LevelInteract, "", false))
	w = e.do(http.MethodPost, "/robot/execute", scroll)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res robot.Result
	decode(t, w, &res)
	assert.True(t, res.Success)
	assert.Equal(t, robot.KindScroll, res.Action)

	w = e.do(http.MethodPost, "/robot/execute", ExecuteRequest{Action: robot.RawAction{Type: "teleport"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/robot/execute", ExecuteRequest{Action: robot.RawAction{Type: "scroll", X: ptr(5000), Y: ptr(5), Direction: "up"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/robot/kill", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st robot.Status
	decode(t, w, &st)
	assert.True(t, st.Killed)

	w = e.do(http.MethodPost, "/robot/execute", scroll)
	assert.Equal(t, http.StatusLocked, w.Code)

	w = e.do(http.MethodPost, "/robot/reset", nil)
	decode(t, w, &st)
	assert.False(t, st.Killed)
	assert.False(t, st.Granted)
}

func TestRobotSequence(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.perms.Grant(command.KeyRobot, permissions.LevelInteract, "", false))

	w := e.do(http.MethodPost, "/robot/sequence", SequenceRequest{
		Actions: []robot.RawAction{
			{Type: "key", Key: "a"},
			{Type: "scroll", X: ptr(1), Y: ptr(1), Direction: "up"},
		},
		SkipConfirm: true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool           `json:"success"`
		Results []robot.Result `json:"results"`
	}
	decode(t, w, &body)
	assert.True(t, body.Success)
	assert.Len(t, body.Results, 2)
	assert.Len(t, e.fake.Calls(), 3)
}

func TestConfirmationRoundTrip(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.perms.Grant(command.KeyRobot, permissions.LevelInteract, "", false))

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- e.do(http.MethodPost, "/robot/execute", ExecuteRequest{Action: robot.RawAction{Type: "key", Key: "enter", Reason: "submit form"}})
	}()

	var pending []robot.Request
	require.Eventually(t, func() bool {
		var body struct {
			Pending []robot.Request `json:"pending"`
		}
		decode(t, e.do(http.MethodGet, "/robot/confirmations", nil), &body)
		pending = body.Pending
		return len(pending) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "submit form", pending[0].Reason)

	w := e.do(http.MethodPost, "/robot/confirmations/"+pending[0].ID.String(), AnswerRequest{Allow: true})
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case res := <-done:
		assert.Equal(t, http.StatusOK, res.Code, res.Body.String())
	case <-time.After(2 * time.Second):
		t.Fatal("execute did not return after the confirmation was answered")
	}

	w = e.do(http.MethodPost, "/robot/confirmations/nope", AnswerRequest{Allow: true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOCREndpoints(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodGet, "/ocr/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"text":"Hello world"`)

	w = e.do(http.MethodPost, "/ocr/click", ClickRequest{Target: "Hello"})
	require.Equal(t, http.StatusOK, w.Code)
	var click vision.ClickResult
	decode(t, w, &click)
	assert.True(t, click.Success)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/ocr/click", map[string]string{}).Code)
}

func TestOCRImageUpload(t *testing.T) {
	e := setup(t)

	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	req := httptest.NewRequest(http.MethodPost, "/ocr/image", bytes.NewReader(buf.Bytes()))
	req.Header.Set("Content-Type", "image/png")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"mime":"image/png"`)
	require.NotNil(t, e.ocr.seen)
	assert.Equal(t, 8, e.ocr.seen.Bounds().Dx())

	req = httptest.NewRequest(http.MethodPost, "/ocr/image", strings.NewReader("just some text"))
	req.Header.Set("Content-Type", "text/plain")
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestOCRUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandlers(Deps{Permissions: permissions.New("")}).Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ocr/scan", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCommandEndpoints(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodPost, "/commands/parse", ParseRequest{Text: "Sure. [NAVIGATE: https://example.com] [SET_VOLUME: loud]"})
	require.Equal(t, http.StatusOK, w.Code)
	var parsed struct {
		Commands    []command.Command          `json:"commands"`
		Remaining   string                     `json:"remaining_text"`
		Validations []command.ValidationResult `json:"validations"`
	}
	decode(t, w, &parsed)
	require.Len(t, parsed.Commands, 2)
	assert.Equal(t, "Sure.", parsed.Remaining)
	assert.True(t, parsed.Validations[0].Valid)
	assert.False(t, parsed.Validations[1].Valid)

	w = e.do(http.MethodPost, "/commands/run", RunRequest{Text: "[RELOAD] [GO_BACK]"})
	require.Equal(t, http.StatusOK, w.Code)
	var final sequencer.Progress
	decode(t, w, &final)
	assert.True(t, final.Done)
	require.Len(t, final.Items, 2)
	assert.Equal(t, "ok GO_BACK", final.Items[1].Output)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/commands/run", RunRequest{Text: "nothing here"}).Code)

	w = e.do(http.MethodPost, "/commands/queue", RunRequest{Commands: []command.Command{{Type: command.Reload}}})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Eventually(t, func() bool {
		var p sequencer.Progress
		decode(t, e.do(http.MethodGet, "/commands/queue", nil), &p)
		return p.Done
	}, 2*time.Second, 10*time.Millisecond)

	w = e.do(http.MethodPost, "/commands/cancel", nil)
	assert.Equal(t, `{"cancelled":true}`, w.Body.String())
}

func TestStreamLogs(t *testing.T) {
	e := setup(t)
	w := e.do(http.MethodPost, "/logs", ShellLogRequest{Entries: []ShellLogEntry{{Level: "warn", Message: "tab crashed"}}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPost, "/logs", ShellLogRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
