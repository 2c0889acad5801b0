package models

import (
	"encoding/json"
	"net/http"
)

const problemBase = "https://api.smartrunning.app/problems/"

// Kind names a class of API failure. Each kind maps to one problem type URI,
// title and HTTP status.
type Kind string

// Problem kinds served by the API.
const (
	KindValidation   Kind = "validation-error"
	KindUnauthorized Kind = "unauthorized"
	KindTLSRequired  Kind = "tls-required"
	KindNotFound     Kind = "not-found"
	KindConflict     Kind = "conflict"
	KindMediaType    Kind = "unsupported-media-type"
	KindRateLimited  Kind = "too-many-requests"
	KindInternal     Kind = "internal-error"
	KindUnavailable  Kind = "service-unavailable"
	KindCapability   Kind = "capability-unavailable"
)

type kindInfo struct {
	title  string
	status int
}

var kinds = map[Kind]kindInfo{
	KindValidation:   {"Validation error", http.StatusBadRequest},
	KindUnauthorized: {"Unauthorized", http.StatusUnauthorized},
	KindTLSRequired:  {"TLS required", http.StatusForbidden},
	KindNotFound:     {"Not found", http.StatusNotFound},
	KindConflict:     {"Conflict", http.StatusConflict},
	KindMediaType:    {"Unsupported media type", http.StatusUnsupportedMediaType},
	KindRateLimited:  {"Too many requests", http.StatusTooManyRequests},
	KindInternal:     {"Internal server error", http.StatusInternalServerError},
	KindUnavailable:  {"Service unavailable", http.StatusServiceUnavailable},
	KindCapability:   {"Capability unavailable", http.StatusServiceUnavailable},
}

// URI is the problem type URI for k.
func (k Kind) URI() string { return problemBase + string(k) }

// Status is the HTTP status for k. Unknown kinds are internal errors.
func (k Kind) Status() int {
	if info, ok := kinds[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Problem is an RFC7807 error body served as application/problem+json.
// Message mirrors Detail (or Title when there is no detail) for clients that
// only read a top-level "message" field.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Message  string       `json:"message"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// New builds a Problem of the given kind. Unknown kinds become internal errors.
func New(kind Kind, traceID, detail string) *Problem {
	info, ok := kinds[kind]
	if !ok {
		kind, info = KindInternal, kinds[KindInternal]
	}
	message := detail
	if message == "" {
		message = info.title
	}
	return &Problem{
		Type:    kind.URI(),
		Title:   info.title,
		Status:  info.status,
		Detail:  detail,
		Message: message,
		TraceID: traceID,
	}
}

// WithErrors attaches per-field validation failures.
func (p *Problem) WithErrors(errs []FieldError) *Problem {
	p.Errors = errs
	return p
}

// Write serves p with its status code.
func (p *Problem) Write(w http.ResponseWriter) {
	if p.Message == "" {
		p.Message = p.Title
	}
	body, err := json.Marshal(p)
	if err != nil {
		http.Error(w, p.Title, p.Status)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_, _ = w.Write(append(body, '\n'))
}
