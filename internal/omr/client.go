package omr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/pavelanni/sheetgrader/internal/model"
)

// DefaultBaseURL is where the grading backend listens in a local setup.
const DefaultBaseURL = "http://localhost:8000"

// Client talks to the bubble-sheet grading backend.
type Client struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
}

// New creates a client for the backend at baseURL. A zero timeout leaves
// requests bounded only by the caller's context.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// BaseURL returns the backend origin this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks that the backend answers the exam list request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListExams(ctx)
	return err
}

// ListExams returns the names of all exams the backend knows.
func (c *Client) ListExams(ctx context.Context) ([]string, error) {
	const op = "list exams"
	var out struct {
		Exams *[]string `json:"exams"`
	}
	if err := c.doJSON(ctx, op, http.MethodGet, "/get_exams", nil, "", &out); err != nil {
		return nil, err
	}
	if out.Exams == nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("%w: exams", ErrMissingField)}
	}
	return *out.Exams, nil
}

// CreateExam registers a new exam under name.
func (c *Client) CreateExam(ctx context.Context, name string) error {
	body, err := json.Marshal(map[string]string{"exam_name": name})
	if err != nil {
		return fmt.Errorf("marshal create request: %w", err)
	}
	return c.doJSON(ctx, "create exam", http.MethodPost, "/create_exam", bytes.NewReader(body), "application/json", nil)
}

// UploadSolution sends the answer-key image and returns the key the backend read from it.
func (c *Client) UploadSolution(ctx context.Context, exam string, file model.UploadFile) (model.AnswerKey, error) {
	const op = "upload solution"
	body, ctype, err := multipartBody(exam, model.UploadSolution, []model.UploadFile{file})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var out struct {
		AnswerKey *model.AnswerKey `json:"answer_key"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, "/upload_solution", body, ctype, &out); err != nil {
		return nil, err
	}
	if out.AnswerKey == nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("%w: answer_key", ErrMissingField)}
	}
	return *out.AnswerKey, nil
}

// UploadResponses sends one or more student response images.
func (c *Client) UploadResponses(ctx context.Context, exam string, files []model.UploadFile) error {
	const op = "upload responses"
	body, ctype, err := multipartBody(exam, model.UploadImages, files)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.doJSON(ctx, op, http.MethodPost, "/upload_multiple_images", body, ctype, nil)
}

// GenerateReport asks the backend to score every uploaded response image.
func (c *Client) GenerateReport(ctx context.Context, exam string) error {
	const op = "generate report"
	body, ctype, err := multipartBody(exam, "", nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.doJSON(ctx, op, http.MethodPost, "/generate_report", body, ctype, nil)
}

// FetchReport retrieves the most recently generated report.
func (c *Client) FetchReport(ctx context.Context, exam string) (model.Report, error) {
	const op = "fetch report"
	body, ctype, err := multipartBody(exam, "", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var out struct {
		Report *model.Report `json:"report"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, "/get_report", body, ctype, &out); err != nil {
		return nil, err
	}
	if out.Report == nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("%w: report", ErrMissingField)}
	}
	return *out.Report, nil
}

// DownloadReport returns the CSV report body.
func (c *Client) DownloadReport(ctx context.Context, exam string) ([]byte, error) {
	const op = "download report"
	body, ctype, err := multipartBody(exam, "", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	data, _, err := c.doRaw(ctx, op, http.MethodPost, "/download_report", body, ctype)
	return data, err
}

// GetExam lists the response images and solution files stored for an exam.
func (c *Client) GetExam(ctx context.Context, exam string) (model.ExamDetail, error) {
	const op = "get exam"
	body, ctype, err := multipartBody(exam, "", nil)
	if err != nil {
		return model.ExamDetail{}, fmt.Errorf("%s: %w", op, err)
	}
	var out struct {
		Images   []string `json:"images"`
		Solution []string `json:"solution"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, "/get_exam", body, ctype, &out); err != nil {
		return model.ExamDetail{}, err
	}
	return model.ExamDetail{Name: exam, Images: out.Images, Solution: out.Solution}, nil
}

// FetchImage returns a stored response image and its content type.
func (c *Client) FetchImage(ctx context.Context, exam, image string) ([]byte, string, error) {
	path := "/exam/" + url.PathEscape(exam) + "/" + url.PathEscape(image)
	return c.doRaw(ctx, "fetch image", http.MethodGet, path, nil, "")
}

func (c *Client) send(ctx context.Context, op, method, path string, body io.Reader, ctype string) (int, http.Header, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, nil, &TransportError{Op: op, Err: err}
	}
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("backend request failed", "op", op, "path", path, "error", err)
		return 0, nil, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	slog.Debug("backend request", "op", op, "method", method, "path", path,
		"status", resp.StatusCode, "bytes", len(data), "duration", time.Since(start))
	return resp.StatusCode, resp.Header, data, nil
}

// doJSON performs a request whose response is a JSON object and decodes it into out.
// Both error shapes are checked before the payload is decoded.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body io.Reader, ctype string, out any) error {
	status, _, data, err := c.send(ctx, op, method, path, body, ctype)
	if err != nil {
		return err
	}
	return decode(op, status, data, out)
}

// doRaw performs a request whose success body is opaque bytes. A JSON body carrying
// an error field is still reported as a BusinessError.
func (c *Client) doRaw(ctx context.Context, op, method, path string, body io.Reader, ctype string) ([]byte, string, error) {
	status, header, data, err := c.send(ctx, op, method, path, body, ctype)
	if err != nil {
		return nil, "", err
	}
	contentType := header.Get("Content-Type")
	if isJSON(contentType) {
		var env envelope
		if json.Unmarshal(data, &env) == nil {
			if msg := env.message(); msg != "" {
				return nil, "", &BusinessError{Op: op, Status: status, Message: msg}
			}
		}
	}
	if status < 200 || status > 299 {
		return nil, "", &TransportError{Op: op, Status: status, Err: fmt.Errorf("unexpected status %d", status)}
	}
	return data, contentType, nil
}

func decode(op string, status int, data []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &TransportError{Op: op, Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	if msg := env.message(); msg != "" {
		return &BusinessError{Op: op, Status: status, Message: msg}
	}
	if status < 200 || status > 299 {
		return &TransportError{Op: op, Status: status, Err: fmt.Errorf("unexpected status %d", status)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Status: status, Err: fmt.Errorf("decode payload: %w", err)}
	}
	return nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody builds a form with exam_name and, when kind is set, the files
// under the kind's field name.
func multipartBody(exam string, kind model.UploadKind, files []model.UploadFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("exam_name", exam); err != nil {
		return nil, "", err
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			kind.FieldName(), quoteEscaper.Replace(f.Name)))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
