// Package response writes API responses: JSON bodies, problem documents and
// file downloads, all tagged with the request ID.
package response

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"

	"github.com/smartrunning/smartrunning/internal/api/middleware"
	"github.com/smartrunning/smartrunning/internal/api/models"
)

// JSON encodes data before touching the response so an encoding failure can
// still be reported as a 500 problem.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	var body []byte
	if data != nil {
		var err error
		if body, err = json.Marshal(data); err != nil {
			Problem(w, r, models.KindInternal, "Failed to encode response")
			return
		}
		body = append(body, '\n')
	}
	write(w, r, status, "application/json", body)
}

// Created writes a 201 with an optional Location header.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	JSON(w, r, http.StatusCreated, data)
}

// NoContent writes a bodiless 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	tag(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Text writes a plain text body.
func Text(w http.ResponseWriter, r *http.Request, status int, body string) {
	write(w, r, status, "text/plain; charset=utf-8", []byte(body))
}

// Attachment serves data as a named file download.
func Attachment(w http.ResponseWriter, r *http.Request, contentType, filename string, data []byte) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	write(w, r, http.StatusOK, contentType, data)
}

// Problem writes an RFC7807 document of the given kind for r.
func Problem(w http.ResponseWriter, r *http.Request, kind models.Kind, detail string) {
	Error(w, r, models.New(kind, middleware.GetRequestID(r.Context()), detail))
}

// Error writes a prepared problem, stamping it with the request path.
func Error(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.Instance = r.URL.Path
	p.Write(w)
}

// BadRequest writes a 400 validation problem with optional field errors.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errs []models.FieldError) {
	Error(w, r, models.New(models.KindValidation, middleware.GetRequestID(r.Context()), detail).WithErrors(errs))
}

func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindUnauthorized, detail)
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindNotFound, detail)
}

func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindConflict, detail)
}

func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindInternal, detail)
}

func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindUnavailable, detail)
}

// CapabilityUnavailable writes a 503 for a disabled optional capability such
// as GPX export.
func CapabilityUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindCapability, detail)
}

func write(w http.ResponseWriter, r *http.Request, status int, contentType string, body []byte) {
	tag(w, r)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

func tag(w http.ResponseWriter, r *http.Request) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
}
