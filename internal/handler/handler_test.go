package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"

	appI18n "github.com/pavelanni/sheetgrader/internal/i18n"
	"github.com/pavelanni/sheetgrader/internal/model"
	"github.com/pavelanni/sheetgrader/internal/omr"
	"github.com/pavelanni/sheetgrader/internal/store"
)

func TestMain(m *testing.M) {
	if err := appI18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeBackend mimics the grading backend's endpoints.
type fakeBackend struct {
	mu     sync.Mutex
	calls  map[string]int
	bodies map[string][]byte

	exams      []string
	listStatus int
	createResp string
	genStatus  int
	genBody    string
	report     string
	csv        string
}

func (f *fakeBackend) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeBackend) body(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.bodies[r.URL.Path] = body
	f.mu.Unlock()

	jsonResp := func(status int, s string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, s)
	}

	switch {
	case r.URL.Path == "/get_exams":
		if f.listStatus != 0 {
			http.Error(w, "upstream unavailable", f.listStatus)
			return
		}
		data, _ := json.Marshal(map[string][]string{"exams": f.exams})
		jsonResp(http.StatusOK, string(data))
	case r.URL.Path == "/create_exam":
		if f.createResp != "" {
			jsonResp(http.StatusOK, f.createResp)
			return
		}
		jsonResp(http.StatusOK, `{"message":"ok"}`)
	case r.URL.Path == "/upload_solution":
		jsonResp(http.StatusOK, `{"answer_key":{"Q2":"C","Q1":"A"}}`)
	case r.URL.Path == "/upload_multiple_images":
		jsonResp(http.StatusOK, `{"message":"uploaded"}`)
	case r.URL.Path == "/generate_report":
		if f.genStatus != 0 {
			jsonResp(f.genStatus, f.genBody)
			return
		}
		jsonResp(http.StatusOK, `{"message":"generated"}`)
	case r.URL.Path == "/get_report":
		jsonResp(http.StatusOK, f.report)
	case r.URL.Path == "/download_report":
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, f.csv)
	case r.URL.Path == "/get_exam":
		jsonResp(http.StatusOK, `{"images":["img1.png"],"solution":["key.png"]}`)
	case strings.HasPrefix(r.URL.Path, "/exam/"):
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG"))
	default:
		http.NotFound(w, r)
	}
}

type testEnv struct {
	t       *testing.T
	backend *fakeBackend
	srv     *httptest.Server
	client  *http.Client
	store   *store.Store
	// target is the HX-Target id htmx requests carry, like the element id htmx
	// sends for the form's hx-target.
	target string
}

func newTestEnv(t *testing.T, cfg model.AppConfig) *testEnv {
	t.Helper()
	fb := &fakeBackend{
		calls:  map[string]int{},
		bodies: map[string][]byte{},
		exams:  []string{"Midterm1", "Final"},
		report: `{"report":{"img1.png":{"score":8,"choices":{"Q1":"A","Q2":"B"},"correct_answers":{"Q1":"A","Q2":"C"}}}}`,
		csv:    "filename,score\nimg1.png,8\n",
	}
	backendSrv := httptest.NewServer(fb)
	t.Cleanup(backendSrv.Close)

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	h, err := New(st, omr.New(backendSrv.URL, 0), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{t: t, backend: fb, srv: srv, client: client, store: st}
}

func (e *testEnv) get(path string) (*http.Response, string) {
	e.t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	if err != nil {
		e.t.Fatalf("GET %s: %v", path, err)
	}
	return resp, readBody(e.t, resp)
}

func (e *testEnv) csrf() string {
	u, _ := url.Parse(e.srv.URL + "/")
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == csrfCookieName {
			return c.Value
		}
	}
	return ""
}

func (e *testEnv) do(req *http.Request, htmx bool) (*http.Response, string) {
	e.t.Helper()
	if htmx {
		req.Header.Set("HX-Request", "true")
		if e.target != "" {
			req.Header.Set("HX-Target", e.target)
		}
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp, readBody(e.t, resp)
}

func (e *testEnv) postForm(path string, vals url.Values, htmx bool) (*http.Response, string) {
	e.t.Helper()
	if vals == nil {
		vals = url.Values{}
	}
	vals.Set("csrf_token", e.csrf())
	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+path, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req, htmx)
}

func (e *testEnv) postFiles(path, field string, names []string, htmx bool) (*http.Response, string) {
	e.t.Helper()
	files := make(map[string][]byte, len(names))
	for _, n := range names {
		files[n] = []byte("\x89PNG fake image " + n)
	}
	return e.postFileData(path, field, names, files, htmx)
}

func (e *testEnv) postFileData(path, field string, names []string, files map[string][]byte, htmx bool) (*http.Response, string) {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, n := range names {
		fw, err := mw.CreateFormFile(field, n)
		if err != nil {
			e.t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = fw.Write(files[n])
	}
	mw.Close()
	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(csrfHeaderName, e.csrf())
	return e.do(req, htmx)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestCreateExamFlow(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})

	resp, body := env.get("/create")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /create status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `name="exam_name"`) {
		t.Fatalf("expected exam name form, got %s", body)
	}

	resp, body = env.postForm("/create/exam", url.Values{"exam_name": {"Midterm1"}}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /create/exam status = %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "Upload the answer key for Midterm1") {
		t.Errorf("expected solution step, got %s", body)
	}
	if strings.Contains(body, "<html") {
		t.Error("htmx request should get a partial")
	}
	if env.backend.count("/create_exam") != 1 {
		t.Errorf("create_exam called %d times", env.backend.count("/create_exam"))
	}
	var sent map[string]string
	_ = json.Unmarshal(env.backend.body("/create_exam"), &sent)
	if sent["exam_name"] != "Midterm1" {
		t.Errorf("create_exam body = %s", env.backend.body("/create_exam"))
	}

	_, body = env.postFiles("/create/solution", "file", []string{"key.png"}, true)
	q1 := strings.Index(body, "Q1: A")
	q2 := strings.Index(body, "Q2: C")
	if q1 < 0 || q2 < 0 || q1 > q2 {
		t.Errorf("expected answer key Q1: A then Q2: C, got %s", body)
	}
	if strings.Count(body, "Q1: A") != 1 {
		t.Errorf("each question should appear once")
	}

	resp, _ = env.postFiles("/create/responses", "files", []string{"a.png", "b.png", "c.png"}, true)
	if got := resp.Header.Get("HX-Redirect"); got != "/exams" {
		t.Errorf("HX-Redirect = %q, want /exams", got)
	}
	if env.backend.count("/upload_multiple_images") != 1 {
		t.Errorf("upload_multiple_images called %d times", env.backend.count("/upload_multiple_images"))
	}
}

func TestCreateExamValidation(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})
	env.get("/create")

	_, body := env.postForm("/create/exam", url.Values{"exam_name": {"   "}}, false)
	if !strings.Contains(body, "Please enter a name for the exam.") {
		t.Errorf("expected validation message, got %s", body)
	}
	if env.backend.count("/create_exam") != 0 {
		t.Error("no backend request expected for an empty name")
	}
}

func TestCreateExamBackendError(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})
	env.backend.createResp = `{"error":"Exam already exists"}`
	env.get("/create")

	env.target = "wizard"

	resp, body := env.postForm("/create/exam", url.Values{"exam_name": {"Midterm1"}}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, htmx only swaps 2xx", resp.StatusCode)
	}
	if !strings.Contains(body, "Exam already exists") {
		t.Errorf("expected backend message, got %s", body)
	}
	assertNoticeOnly(t, resp, body, "#wizard-notice")

	_, body = env.postForm("/create/exam", url.Values{"exam_name": {"Midterm1"}}, false)
	if !strings.Contains(body, `name="exam_name"`) || !strings.Contains(body, "Exam already exists") {
		t.Errorf("wizard should stay on the naming step, got %s", body)
	}
}

// assertNoticeOnly checks that a failed htmx request fills only the notice
// slot, so the form and its selected files survive.
func assertNoticeOnly(t *testing.T, resp *http.Response, body, slot string) {
	t.Helper()
	if got := resp.Header.Get("HX-Retarget"); got != slot {
		t.Errorf("HX-Retarget = %q, want %q", got, slot)
	}
	if got := resp.Header.Get("HX-Reswap"); got != "innerHTML" {
		t.Errorf("HX-Reswap = %q, want innerHTML", got)
	}
	if !strings.Contains(body, `class="notice notice-error"`) {
		t.Errorf("expected notice markup, got %s", body)
	}
	if strings.Contains(body, "<form") {
		t.Errorf("failed step must not resend the form, got %s", body)
	}
}

func TestSolutionRequiresFile(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})
	env.get("/create")
	env.postForm("/create/exam", url.Values{"exam_name": {"Midterm1"}}, true)

	env.target = "wizard"
	resp, body := env.postFiles("/create/solution", "file", nil, true)
	if !strings.Contains(body, "Please select the answer key file.") {
		t.Errorf("expected validation message, got %s", body)
	}
	assertNoticeOnly(t, resp, body, "#wizard-notice")
	if env.backend.count("/upload_solution") != 0 {
		t.Error("no upload expected without a file")
	}
}

func TestWizardResponsesFailureKeepsForm(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})
	env.get("/create")
	env.postForm("/create/exam", url.Values{"exam_name": {"Midterm1"}}, true)
	env.postFiles("/create/solution", "file", []string{"key.png"}, true)
	env.target = "wizard"

	resp, body := env.postFiles("/create/responses", "files", nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Please select at least one response image.") {
		t.Errorf("expected validation message, got %s", body)
	}
	assertNoticeOnly(t, resp, body, "#wizard-notice")

	// A full page load still shows the step with its upload form.
	_, body = env.postFiles("/create/responses", "files", nil, false)
	if !strings.Contains(body, `action="/create/responses"`) || !strings.Contains(body, `id="wizard-notice"`) {
		t.Errorf("expected responses step with notice slot, got %s", body)
	}
}

func TestExamsBoard(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})

	resp, body := env.get("/exams")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{"Midterm1", "Final", "Pending"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in board", want)
		}
	}

	_, body = env.postFiles("/exams/Midterm1/responses", "files", []string{"img1.png"}, true)
	if !strings.Contains(body, "Processed") || !strings.Contains(body, "img1.png") {
		t.Errorf("expected processed card with result, got %s", body)
	}
	if !strings.Contains(body, `class="right"`) || !strings.Contains(body, `class="wrong"`) {
		t.Errorf("expected right and wrong answers, got %s", body)
	}
	if !strings.Contains(body, "correct: C") {
		t.Errorf("expected correct answer for the wrong choice, got %s", body)
	}
	for _, p := range []string{"/upload_multiple_images", "/generate_report", "/get_report"} {
		if env.backend.count(p) != 1 {
			t.Errorf("%s called %d times", p, env.backend.count(p))
		}
	}
}

func TestGenerateReportFailure(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})
	env.backend.genStatus = http.StatusInternalServerError
	env.backend.genBody = `{"detail":"no answer key"}`
	env.get("/exams")

	env.target = "exam-0"
	resp, body := env.postForm("/exams/Midterm1/report", nil, true)
	if !strings.Contains(body, "no answer key") {
		t.Errorf("expected backend detail, got %s", body)
	}
	assertNoticeOnly(t, resp, body, "#exam-0-notice")
	if env.backend.count("/get_report") != 0 {
		t.Error("report must not be fetched after a failed generation")
	}
}

func TestDownloadReport(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})
	env.get("/exams")

	resp, body := env.postForm("/exams/Final/download", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); got != "attachment; filename=Final_report.csv" {
		t.Errorf("Content-Disposition = %q", got)
	}
	if body != env.backend.csv {
		t.Errorf("body = %q", body)
	}
}

func TestUnknownExam(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})
	env.get("/exams")

	_, body := env.postForm("/exams/Ghost/report", nil, false)
	if !strings.Contains(body, "That exam is not in the list.") {
		t.Errorf("expected unknown exam notice, got %s", body)
	}
	if env.backend.count("/generate_report") != 0 {
		t.Error("no backend request expected")
	}
}

func TestExamDetailAndImage(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})

	_, body := env.get("/exams/Midterm1")
	if !strings.Contains(body, "Files for Midterm1") || !strings.Contains(body, "/exams/Midterm1/images/img1.png") {
		t.Errorf("detail page = %s", body)
	}

	resp, body := env.get("/exams/Midterm1/images/img1.png")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("image status %d type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if body != "\x89PNG" {
		t.Errorf("image body = %q", body)
	}
}

func TestCSRFRequired(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})
	env.get("/create")

	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/create/exam", strings.NewReader("exam_name=X"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, body := env.do(req, false)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
	if !strings.Contains(body, "Your session has expired.") {
		t.Errorf("expected error page, got %s", body)
	}

	req, _ = http.NewRequest(http.MethodPost, env.srv.URL+"/create/exam", strings.NewReader("exam_name=X"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, body = env.do(req, true)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("htmx status = %d, want 200", resp.StatusCode)
	}
	assertNoticeOnly(t, resp, body, "#page-notice")
	if env.backend.count("/create_exam") != 0 {
		t.Error("request without CSRF token must not reach the backend")
	}
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{MaxUploadBytes: 1024})
	env.get("/exams")

	big := map[string][]byte{"big.png": bytes.Repeat([]byte("x"), 8<<10)}
	resp, body := env.postFileData("/exams/Midterm1/responses", "files", []string{"big.png"}, big, false)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
	if !strings.Contains(body, "The upload is too large.") {
		t.Errorf("expected error page, got %s", body)
	}

	env.target = "exam-0"
	resp, body = env.postFileData("/exams/Midterm1/responses", "files", []string{"big.png"}, big, true)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("htmx status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "The upload is too large.") {
		t.Errorf("expected too-large notice, got %s", body)
	}
	assertNoticeOnly(t, resp, body, "#exam-0-notice")
	if env.backend.count("/upload_multiple_images") != 0 {
		t.Error("oversized upload must not reach the backend")
	}
}

func TestNoticeTarget(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"", "#page-notice"},
		{"wizard", "#wizard-notice"},
		{"exam-3", "#exam-3-notice"},
		{`x"],body`, "#page-notice"},
		{"a b", "#page-notice"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		if tt.target != "" {
			r.Header.Set("HX-Target", tt.target)
		}
		if got := noticeTarget(r); got != tt.want {
			t.Errorf("noticeTarget(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcryptHash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	env := newTestEnv(t, model.AppConfig{PasswordHash: hash})

	resp, _ := env.get("/exams")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("expected redirect to login, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, _ = env.get("/api/exams")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("API status = %d, want 401", resp.StatusCode)
	}

	env.get("/login")
	resp, body := env.postForm("/login", url.Values{"password": {"wrong"}}, false)
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(body, "Wrong password.") {
		t.Errorf("wrong password: %d %s", resp.StatusCode, body)
	}

	resp, _ = env.postForm("/login", url.Values{"password": {"secret"}}, false)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	resp, body = env.get("/exams")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("after login status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Sign out") {
		t.Error("signed-in page should offer sign out")
	}

	resp, _ = env.postForm("/logout", nil, false)
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("logout status = %d", resp.StatusCode)
	}
	resp, _ = env.get("/exams")
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("after logout status = %d, want redirect", resp.StatusCode)
	}
}

func TestLoginFromStoredHash(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})
	hash, _ := bcryptHash("secret")
	if err := env.store.SetOperatorPasswordHash(hash); err != nil {
		t.Fatalf("SetOperatorPasswordHash: %v", err)
	}
	resp, _ := env.get("/")
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("status = %d, want redirect to login", resp.StatusCode)
	}
}

func TestAPI(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{CORSOrigins: []string{"http://grades.example.com"}})

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/exams", nil)
	req.Header.Set("Origin", "http://grades.example.com")
	resp, body := env.do(req, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://grades.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	var exams struct{ Exams []string }
	if err := json.Unmarshal([]byte(body), &exams); err != nil || len(exams.Exams) != 2 {
		t.Errorf("body = %s", body)
	}

	_, body = env.get("/api/exams/Midterm1/report?generate=true")
	var rep model.ReportExport
	if err := json.Unmarshal([]byte(body), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Exam != "Midterm1" || rep.NumResults != 1 || rep.Results[0].Correct != 1 {
		t.Errorf("report = %+v", rep)
	}
	if env.backend.count("/generate_report") != 1 {
		t.Error("generate=true should generate first")
	}

	env.backend.listStatus = http.StatusServiceUnavailable
	resp, body = env.get("/api/exams")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if !strings.Contains(body, `"error":"Error loading exams. Please try again."`) {
		t.Errorf("body = %s", body)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})
	resp, body := env.get("/healthz")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"status":"ok","backend":"ok"`) {
		t.Errorf("health = %d %s", resp.StatusCode, body)
	}

	env.backend.listStatus = http.StatusServiceUnavailable
	resp, body = env.get("/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status code = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, `"status":"degraded","backend":"unreachable"`) {
		t.Errorf("health = %s", body)
	}
}

func TestBasePath(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{BasePath: "/omr"})

	resp, body := env.get("/omr/dashboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `href="/omr/create"`) {
		t.Errorf("links should carry the base path: %s", body)
	}

	resp, _ = env.get("/dashboard")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("routes outside the base path status = %d, want 404", resp.StatusCode)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, model.AppConfig{})
	resp, body := env.get("/nope")
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "Page not found.") {
		t.Errorf("got %d %s", resp.StatusCode, body)
	}
}

func TestDefaultUploadLimit(t *testing.T) {
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()

	h, err := New(st, omr.New("http://127.0.0.1:0", 0), model.AppConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if h.config.MaxUploadBytes != 100<<20 {
		t.Errorf("MaxUploadBytes = %d, want the 100 MiB default", h.config.MaxUploadBytes)
	}
}
