package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UploadKind selects the field name and cardinality of an upload.
type UploadKind string

const (
	// UploadSolution is a single answer-key image sent as field "file".
	UploadSolution UploadKind = "solution"
	// UploadImages is one or more response images sent as repeated field "files".
	UploadImages UploadKind = "images"
)

// FieldName returns the multipart field name used for files of this kind.
func (k UploadKind) FieldName() string {
	if k == UploadSolution {
		return "file"
	}
	return "files"
}

// Multiple reports whether the kind accepts more than one file.
func (k UploadKind) Multiple() bool {
	return k == UploadImages
}

// UploadFile is one selected file held in memory until the request completes.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadBatch is the set of files selected for one upload action.
type UploadBatch struct {
	Kind     UploadKind
	ExamName string
	Files    []UploadFile
}

var (
	// ErrNoFiles is returned when a batch carries no files.
	ErrNoFiles = errors.New("no files selected")
	// ErrTooManyFiles is returned when a solution batch carries more than one file.
	ErrTooManyFiles = errors.New("solution upload accepts exactly one file")
)

// Validate checks the batch cardinality against its kind.
func (b UploadBatch) Validate() error {
	switch b.Kind {
	case UploadSolution:
		if len(b.Files) == 0 {
			return ErrNoFiles
		}
		if len(b.Files) > 1 {
			return ErrTooManyFiles
		}
	case UploadImages:
		if len(b.Files) == 0 {
			return ErrNoFiles
		}
	default:
		return fmt.Errorf("unknown upload kind %q", b.Kind)
	}
	return nil
}

// Exam is one exam as seen by the exam list. Name is the backend's primary key.
type Exam struct {
	Name      string `json:"name"`
	Processed bool   `json:"processed"`
	Report    Report `json:"report,omitempty"`
}

// ExamDetail lists the files the backend holds for an exam.
type ExamDetail struct {
	Name     string   `json:"name"`
	Images   []string `json:"images"`
	Solution []string `json:"solution"`
}

// Notice is a message shown inline on a page. Exactly one of MsgID or Text is set:
// MsgID is localized at render time, Text is shown verbatim.
type Notice struct {
	MsgID string `json:"msg_id,omitempty"`
	Text  string `json:"text,omitempty"`
	Exam  string `json:"exam,omitempty"`
}

// Empty reports whether there is nothing to show.
func (n *Notice) Empty() bool {
	return n == nil || (n.MsgID == "" && n.Text == "")
}

// Operator is the signed-in UI operator when login is enabled.
type Operator struct {
	Name string
}

// AuthSession represents an operator login session.
type AuthSession struct {
	ID        string
	Operator  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AppConfig holds runtime settings set via flags, env or config file.
type AppConfig struct {
	BackendURL     string
	BackendTimeout time.Duration // 0 means no timeout
	BasePath       string        // URL prefix for sub-path deployments (e.g. "/omr")
	SecureCookies  bool
	SessionTTL     time.Duration
	PasswordHash   string // bcrypt hash; empty disables login
	CORSOrigins    []string
	MaxUploadBytes int64
}

type operatorCtxKey struct{}

// ContextWithOperator stores the signed-in operator in the request context.
func ContextWithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, operatorCtxKey{}, op)
}

// OperatorFromContext retrieves the signed-in operator from context, or nil.
func OperatorFromContext(ctx context.Context) *Operator {
	op, _ := ctx.Value(operatorCtxKey{}).(*Operator)
	return op
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

type viewCtxKey struct{}

// ContextWithViewSession stores the view-session ID in context.
func ContextWithViewSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, viewCtxKey{}, id)
}

// ViewSessionFromContext retrieves the view-session ID from context.
func ViewSessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(viewCtxKey{}).(string)
	return id
}
