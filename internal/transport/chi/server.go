// Package chi exposes the document pipeline over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/docrag/internal/usecase/health"
	"github.com/kailas-cloud/docrag/internal/usecase/indexing"
)

const (
	multipartMemory   = 32 << 20
	multipartOverhead = 1 << 20
	maxJSONBody       = 1 << 20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, message string, data any) bool

// Services bundles the use cases the server dispatches to.
type Services struct {
	Indexer  Indexer
	Deleter  Deleter
	Answerer Answerer
	Catalog  Catalog
	Health   HealthChecker
}

// Server serves the document API.
type Server struct {
	svc            Services
	maxUploadBytes int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server. maxUploadBytes caps multipart uploads; 0 disables the cap.
func NewServer(svc Services, maxUploadBytes int64, logger *zap.Logger) *Server {
	s := &Server{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnsupportedContent, http.StatusUnsupportedMediaType, true),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, true),
		sentinelHandler(domain.ErrPermission, http.StatusForbidden, true),
		sentinelHandler(domain.ErrNoMatch, http.StatusNotFound, true),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, true),
		sentinelHandler(domain.ErrObjectNotFound, http.StatusNotFound, true),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, true),
		sentinelHandler(domain.ErrExtraction, http.StatusUnprocessableEntity, false),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, false),
		sentinelHandler(domain.ErrEmbedding, http.StatusBadGateway, false),
		sentinelHandler(domain.ErrIndex, http.StatusBadGateway, false),
		sentinelHandler(domain.ErrObjectStore, http.StatusBadGateway, false),
		sentinelHandler(domain.ErrGeneration, http.StatusBadGateway, false),
	}
	return s
}

// Routes registers every endpoint on r. Authentication is applied by the caller.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/documents", func(r gochi.Router) {
		r.Post("/", s.UploadDocument)
		r.Get("/", s.ListDocuments)
		r.Delete("/", s.DeleteAllDocuments)
		r.Post("/delete", s.DeleteDocuments)

		r.Route("/{id}", func(r gochi.Router) {
			r.Get("/", s.GetDocument)
			r.Patch("/", s.UpdateDocument)
			r.Delete("/", s.DeleteDocument)
			r.Get("/info", s.DocumentInfo)
			r.Get("/download", s.DownloadDocument)
			r.Post("/share", s.ShareDocument)
			r.Delete("/share/{userID}", s.UnshareDocument)
			r.Post("/reindex", s.ReindexDocument)
			r.Post("/ask", s.AskDocument)
		})
	})
}

// UploadDocument handles POST /api/v1/documents (multipart: file, name, description, tags).
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	requester := RequesterFromContext(r.Context())
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "validation_error",
				"File too large", fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid multipart form", err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "File is required", err.Error())
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Could not read file", err.Error())
		return
	}

	up := indexing.Upload{
		OwnerID:     requester,
		Name:        uploadName(r.FormValue("name"), header.Filename),
		Description: r.FormValue("description"),
		Tags:        parseTags(r.MultipartForm.Value["tags"]),
		ContentType: uploadContentType(header.Header.Get("Content-Type"), header.Filename),
		Data:        data,
	}

	// Indexing outlives a dropped client connection.
	out, err := s.svc.Indexer.Ingest(context.WithoutCancel(r.Context()), up)
	if err != nil {
		s.handleOutcomeError(w, r, out, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		Success: true,
		Message: out.Message,
		Data:    documentToDTO(&out.Document, requester),
	})
}

// ListDocuments handles GET /api/v1/documents?type=&status=&page=&limit=.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	requester := RequesterFromContext(r.Context())
	q := r.URL.Query()

	// Optional parameters bind into pointers and stay nil when absent.
	var (
		scope, status *string
		page, limit   *int
	)
	for _, p := range []struct {
		name string
		dest any
	}{
		{"type", &scope},
		{"status", &status},
		{"page", &page},
		{"limit", &limit},
	} {
		if err := runtime.BindQueryParameter("form", true, false, p.name, q, p.dest); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "Invalid "+p.name, err.Error())
			return
		}
	}
	f := catalog.ListFilter{Scope: deref(scope), Status: deref(status), Page: deref(page), Limit: deref(limit)}

	res, err := s.svc.Catalog.List(r.Context(), requester, f)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	docs := make([]documentDTO, len(res.Documents))
	for i := range res.Documents {
		docs[i] = documentToDTO(&res.Documents[i], requester)
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: listDTO{
			Documents: docs,
			Type:      string(res.Scope),
			Total:     res.Total,
			Page:      res.Page,
			Limit:     res.Limit,
		},
	})
}

// GetDocument handles GET /api/v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	requester := RequesterFromContext(r.Context())
	doc, err := s.svc.Catalog.Get(r.Context(), gochi.URLParam(r, "id"), requester)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: documentToDTO(&doc, requester)})
}

// DocumentInfo handles GET /api/v1/documents/{id}/info.
func (s *Server) DocumentInfo(w http.ResponseWriter, r *http.Request) {
	requester := RequesterFromContext(r.Context())
	doc, err := s.svc.Catalog.Info(r.Context(), gochi.URLParam(r, "id"), requester)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: documentToDTO(&doc, requester)})
}

// DownloadDocument handles GET /api/v1/documents/{id}/download.
func (s *Server) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	dl, err := s.svc.Catalog.Download(r.Context(), gochi.URLParam(r, "id"), RequesterFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: downloadDTO{
			URL:         dl.URL,
			Name:        dl.Name,
			ContentType: dl.ContentType,
			Size:        dl.Size,
		},
	})
}

// UpdateDocument handles PATCH /api/v1/documents/{id}.
func (s *Server) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	requester := RequesterFromContext(r.Context())
	doc, err := s.svc.Catalog.Update(r.Context(), gochi.URLParam(r, "id"), requester, document.Patch{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Document updated", Data: documentToDTO(&doc, requester)})
}

// ShareDocument handles POST /api/v1/documents/{id}/share.
func (s *Server) ShareDocument(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if !decodeBody(w, r, &req) {
		return
	}
	requester := RequesterFromContext(r.Context())
	perm := document.Permission(req.Permission)
	if perm == "" {
		perm = document.PermissionRead
	}
	doc, err := s.svc.Catalog.Share(r.Context(), gochi.URLParam(r, "id"), requester, req.UserID, perm)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Document shared", Data: documentToDTO(&doc, requester)})
}

// UnshareDocument handles DELETE /api/v1/documents/{id}/share/{userID}.
func (s *Server) UnshareDocument(w http.ResponseWriter, r *http.Request) {
	requester := RequesterFromContext(r.Context())
	doc, err := s.svc.Catalog.Unshare(r.Context(), gochi.URLParam(r, "id"), requester, gochi.URLParam(r, "userID"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Share revoked", Data: documentToDTO(&doc, requester)})
}

// ReindexDocument handles POST /api/v1/documents/{id}/reindex.
func (s *Server) ReindexDocument(w http.ResponseWriter, r *http.Request) {
	requester := RequesterFromContext(r.Context())
	out, err := s.svc.Indexer.Reindex(context.WithoutCancel(r.Context()), gochi.URLParam(r, "id"), requester)
	if err != nil {
		s.handleOutcomeError(w, r, out, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		Success: true,
		Message: out.Message,
		Data:    documentToDTO(&out.Document, requester),
	})
}

// AskDocument handles POST /api/v1/documents/{id}/ask.
func (s *Server) AskDocument(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ans, err := s.svc.Answerer.Answer(r.Context(), gochi.URLParam(r, "id"), RequesterFromContext(r.Context()), req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: answerToDTO(&ans)})
}

// DeleteDocument handles DELETE /api/v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Deleter.Delete(r.Context(), gochi.URLParam(r, "id"), RequesterFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Document deleted",
		Data:    summaryToDTO(&sum),
	})
}

// DeleteDocuments handles POST /api/v1/documents/delete with {"ids": [...]}.
func (s *Server) DeleteDocuments(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bulk, err := s.svc.Deleter.DeleteMany(r.Context(), req.IDs, RequesterFromContext(r.Context()))
	if err != nil {
		s.respondError(w, r, "No documents deleted", bulkToDTO(&bulk), err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("Deleted %d of %d documents", len(bulk.Deleted), bulk.Requested),
		Data:    bulkToDTO(&bulk),
	})
}

// DeleteAllDocuments handles DELETE /api/v1/documents: everything the requester owns.
func (s *Server) DeleteAllDocuments(w http.ResponseWriter, r *http.Request) {
	bulk, err := s.svc.Deleter.DeleteAllForOwner(r.Context(), RequesterFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("Deleted %d documents", len(bulk.Deleted)),
		Data:    bulkToDTO(&bulk),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.svc.Health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthDTO{Status: string(report.Status), Checks: checks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, category, message, detail string) {
	writeJSON(w, status, envelope{
		Message: message,
		Error:   &errorDTO{Category: category, Detail: detail},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body", err.Error())
		return false
	}
	return true
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// safeDetail exposes client errors verbatim and reduces upstream failures to their sentinel text.
func safeDetail(err, sentinel error, expose bool) string {
	if expose {
		return err.Error()
	}
	return sentinel.Error()
}

func sentinelHandler(sentinel error, status int, expose bool) errorHandler {
	return func(w http.ResponseWriter, err error, message string, data any) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		if message == "" {
			message = http.StatusText(status)
		}
		writeJSON(w, status, envelope{
			Message: message,
			Data:    data,
			Error:   &errorDTO{Category: domain.Category(err), Detail: safeDetail(err, sentinel, expose)},
		})
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, "", nil, err)
}

// handleOutcomeError reports a failed pipeline run, carrying the failed document when one exists.
func (s *Server) handleOutcomeError(w http.ResponseWriter, r *http.Request, out indexing.Outcome, err error) {
	var payload any
	if out.Document.ID() != "" {
		payload = documentToDTO(&out.Document, RequesterFromContext(r.Context()))
	}
	s.respondError(w, r, out.Message, payload, err)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, message string, data any, err error) {
	log := s.logger.With(zap.String("method", r.Method), zap.String("path", r.URL.Path))
	log.Warn("request failed", zap.String("category", domain.Category(err)), zap.Error(err))

	for _, h := range s.errorHandlers {
		if h(w, err, message, data) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	if message == "" {
		message = "Internal error"
	}
	writeJSON(w, http.StatusInternalServerError, envelope{
		Message: message,
		Data:    data,
		Error:   &errorDTO{Category: domain.Category(err), Detail: "internal error"},
	})
}
