package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"intake/internal/form"
	"intake/internal/persist"
	"intake/internal/platform/metrics"
	"intake/internal/platform/middleware"
	"intake/internal/session"
	dErrors "intake/pkg/domainerrors"
	"intake/pkg/platform/httputil"
)

// maxBodyBytes bounds request bodies; attachments travel base64-inline.
const maxBodyBytes = 32 << 20

// Service is the session surface the HTTP layer drives. Every code-scoped
// operation is atomic: the session activates the code and performs the
// mutation or read under one lock hold, so concurrent requests for different
// codes cannot interleave mid-operation.
type Service interface {
	View(ctx context.Context, code string) session.State
	Apply(ctx context.Context, code string, fields form.Record) session.State
	Clear(ctx context.Context, code string) session.State
	Import(ctx context.Context, code string, data []byte) (session.State, error)
	Export(ctx context.Context, code string) ([]byte, error)
	Submit(ctx context.Context, code string) (session.State, map[string]string, error)
	ValidateRecord(r form.Record) form.Result
	LastCode(ctx context.Context) (string, error)
}

// Handler exposes the form session over HTTP for the rendering client.
type Handler struct {
	session Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(session Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{session: session, logger: logger, metrics: m}
}

// Register mounts the form routes with the standard middleware chain.
func (h *Handler) Register(r chi.Router) {
	formRouter := chi.NewRouter()
	formRouter.Use(middleware.Recovery(h.logger))
	formRouter.Use(middleware.RequestID)
	formRouter.Use(middleware.Logger(h.logger))
	formRouter.Use(middleware.Timeout(30 * time.Second))
	formRouter.Use(middleware.ContentTypeJSON)
	formRouter.Use(middleware.Latency(h.metrics))

	formRouter.Get("/api/form/last", h.handleLastCode)
	formRouter.Get("/api/form/{code}", h.handleGet)
	formRouter.Put("/api/form/{code}", h.handlePut)
	formRouter.Post("/api/form/{code}/clear", h.handleClear)
	formRouter.Get("/api/form/{code}/export", h.handleExport)
	formRouter.Post("/api/form/{code}/import", h.handleImport)
	formRouter.Post("/api/form/{code}/submission", h.handleSubmission)
	formRouter.Get("/api/form/{code}/progress", h.handleProgress)
	formRouter.Post("/api/validate", h.handleValidate)

	r.Mount("/", formRouter)
}

// formResponse is the state the rendering client derives its inputs from.
type formResponse struct {
	Code     string                       `json:"code"`
	Record   json.RawMessage              `json:"record"`
	Errors   map[string][]form.FieldError `json:"errors,omitempty"`
	Progress int                          `json:"progress"`
	Sections []form.SectionState          `json:"sections"`
}

func (h *Handler) writeState(w http.ResponseWriter, status int, st session.State) {
	record := st.Record
	delete(record, form.FieldAccessCode)
	raw, err := persist.MarshalPortable(record, persist.ExportDateLayout)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "render record", err))
		return
	}
	httputil.WriteJSON(w, status, formResponse{
		Code:     st.Code,
		Record:   raw,
		Errors:   st.Errors,
		Progress: st.Progress,
		Sections: st.Sections,
	})
}

// codeParam extracts the access code from the URL. Codes of invalid length
// are a client error, not a silent no-op, at this boundary.
func codeParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	code := chi.URLParam(r, "code")
	if !form.CodeOK(code) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "access code must be 5-10 characters"))
		return "", false
	}
	return code, true
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	code, ok := codeParam(w, r)
	if !ok {
		return
	}
	h.writeState(w, http.StatusOK, h.session.View(r.Context(), code))
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code, ok := codeParam(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable request body"))
		return
	}
	fields, err := persist.UnmarshalPortable(body)
	if err != nil {
		h.logger.WarnContext(ctx, "rejecting malformed field update",
			"request_id", middleware.GetRequestID(ctx), "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "body must be a JSON field object"))
		return
	}

	h.writeState(w, http.StatusOK, h.session.Apply(ctx, code, fields))
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	code, ok := codeParam(w, r)
	if !ok {
		return
	}
	h.writeState(w, http.StatusOK, h.session.Clear(r.Context(), code))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	code, ok := codeParam(w, r)
	if !ok {
		return
	}
	data, err := h.session.Export(r.Context(), code)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "export failed", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="form-export.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code, ok := codeParam(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable request body"))
		return
	}
	st, err := h.session.Import(ctx, code, body)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "import document is not valid JSON"))
		return
	}
	h.writeState(w, http.StatusOK, st)
}

type submissionResponse struct {
	Accepted     bool              `json:"accepted"`
	ServerErrors map[string]string `json:"serverErrors,omitempty"`
}

func (h *Handler) handleSubmission(w http.ResponseWriter, r *http.Request) {
	code, ok := codeParam(w, r)
	if !ok {
		return
	}

	st, serverErrors, err := h.session.Submit(r.Context(), code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// Submission is the one gate on overall validity.
	if !st.Valid() {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, formResponse{
			Code:     st.Code,
			Errors:   st.Errors,
			Progress: st.Progress,
			Sections: st.Sections,
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, submissionResponse{
		Accepted:     len(serverErrors) == 0,
		ServerErrors: serverErrors,
	})
}

type progressResponse struct {
	Progress int                 `json:"progress"`
	Sections []form.SectionState `json:"sections"`
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	code, ok := codeParam(w, r)
	if !ok {
		return
	}
	st := h.session.View(r.Context(), code)
	httputil.WriteJSON(w, http.StatusOK, progressResponse{
		Progress: st.Progress,
		Sections: st.Sections,
	})
}

// handleValidate checks a record shape without touching the session record.
// The client uses it for dry-run validation of drafts.
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable request body"))
		return
	}
	record, err := persist.UnmarshalPortable(body)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "body must be a JSON field object"))
		return
	}
	res := h.session.ValidateRecord(record)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"valid":  res.Valid(),
		"errors": res.FieldErrors,
	})
}

type lastCodeResponse struct {
	Code string `json:"code"`
}

func (h *Handler) handleLastCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.session.LastCode(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "last code lookup failed", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lastCodeResponse{Code: code})
}
