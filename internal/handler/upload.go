package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/pavelanni/sheetgrader/internal/model"
)

// maxMemory is how much of a multipart body is kept in memory; the rest spills to disk.
const maxMemory = 10 << 20

// parseForm parses url-encoded and multipart bodies once. Later calls are no-ops.
func parseForm(r *http.Request) error {
	if r.Form != nil {
		return nil
	}
	ctype, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ctype == "multipart/form-data" {
		return r.ParseMultipartForm(maxMemory)
	}
	return r.ParseForm()
}

// formError answers a request whose body could not be read.
func (h *Handler) formError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		slog.Warn("upload too large", "limit", tooLarge.Limit)
		h.fail(w, r, http.StatusRequestEntityTooLarge, &model.Notice{MsgID: "ErrUploadTooLarge"})
		return
	}
	slog.Warn("invalid form", "error", err)
	h.fail(w, r, http.StatusBadRequest, &model.Notice{MsgID: "ErrInvalidForm"})
}

// parseUploadBatch reads the files of an upload widget of the given kind. Cardinality is
// left to the workflows so that an empty selection turns into an inline message.
func parseUploadBatch(r *http.Request, kind model.UploadKind, exam string) (model.UploadBatch, error) {
	batch := model.UploadBatch{Kind: kind, ExamName: exam}
	if err := parseForm(r); err != nil {
		return batch, err
	}
	if r.MultipartForm == nil {
		return batch, nil
	}
	for _, fh := range r.MultipartForm.File[kind.FieldName()] {
		if fh.Filename == "" && fh.Size == 0 {
			// Browsers send an empty part for a file input with nothing selected.
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return batch, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return batch, fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}
		ctype := fh.Header.Get("Content-Type")
		if ctype == "" || ctype == "application/octet-stream" {
			ctype = http.DetectContentType(data)
		}
		batch.Files = append(batch.Files, model.UploadFile{
			Name:        fh.Filename,
			ContentType: ctype,
			Data:        data,
		})
	}
	return batch, nil
}
