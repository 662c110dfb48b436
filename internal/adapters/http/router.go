package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/medical-rag-assistant/internal/config"
	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/core/ports"
	"github.com/kirillkom/medical-rag-assistant/internal/core/usecase"
	"github.com/kirillkom/medical-rag-assistant/internal/observability/metrics"
)

const (
	maxUploadBytes = 32 << 20
	maxChatBytes   = 64 << 10
)

// Plain text replies of the form endpoint, kept for existing chat widgets.
const (
	formEmptyQuestionReply = "Please provide a medical question for me to help you with."
	formTooLongReply       = "Please keep your medical question under 1000 characters for better processing."
	formErrorReply         = "I apologize, but I encountered an error processing your medical question. Please try again or consult with a healthcare professional."
)

type Router struct {
	cfg      config.Config
	chat     ports.ChatService
	status   ports.StatusReporter
	ingest   ports.DocumentIngestor
	docs     ports.DocumentReader
	metrics  *metrics.HTTPServerMetrics
	mcp      http.Handler
	openAPI  []byte
	validate *validator.Validate
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) { rt.metrics = m }
}

// WithMCP mounts an MCP streamable HTTP handler under /mcp.
func WithMCP(handler http.Handler) RouterOption {
	return func(rt *Router) { rt.mcp = handler }
}

// WithOpenAPI serves the given JSON document under /openapi.json.
func WithOpenAPI(document []byte) RouterOption {
	return func(rt *Router) { rt.openAPI = document }
}

// NewRouter wires the HTTP surface. ingest and docs may be nil when document
// uploads are disabled; the upload routes are then not registered.
func NewRouter(
	cfg config.Config,
	chat ports.ChatService,
	status ports.StatusReporter,
	ingest ports.DocumentIngestor,
	docs ports.DocumentReader,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:      cfg,
		chat:     chat,
		status:   status,
		ingest:   ingest,
		docs:     docs,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/get", rt.formAnswer)
	mux.HandleFunc("/v1/chat", rt.chatAnswer)
	mux.HandleFunc("/health", rt.health)
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.ingest != nil && rt.docs != nil {
		mux.HandleFunc("/v1/documents", rt.uploadDocument)
		mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	}
	if rt.openAPI != nil {
		mux.HandleFunc("/openapi.json", rt.openAPIDocument)
	}
	if rt.mcp != nil {
		mux.Handle("/mcp", rt.mcp)
	}
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = recoverMiddleware(handler)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.ServiceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	report := rt.status.Status(r.Context())
	state := "healthy"
	if !report.ReadyForQueries {
		state = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            state,
		"components":        report.Components,
		"ready_for_queries": report.ReadyForQueries,
	})
}

// formAnswer serves the original chat widget contract: form field msg in,
// text/plain answer out. Validation problems are answered in plain text with
// status 200.
func (rt *Router) formAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBytes)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form body"})
		return
	}
	if _, ok := r.PostForm["msg"]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'msg' is required"})
		return
	}

	question := strings.TrimSpace(r.PostForm.Get("msg"))
	switch {
	case question == "":
		writeText(w, formEmptyQuestionReply)
		return
	case utf8.RuneCountInString(question) > usecase.MaxQuestionRunes:
		writeText(w, formTooLongReply)
		return
	}

	answer, err := rt.ask(r, "get", question)
	if err != nil {
		slog.Error("form_answer_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeText(w, formErrorReply)
		return
	}
	writeText(w, answer.Text)
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

func (rt *Router) chatAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := rt.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErrors(err),
		})
		return
	}

	answer, err := rt.ask(r, "chat", req.Message)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		slog.Error("chat_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) ask(r *http.Request, endpoint, question string) (*domain.Answer, error) {
	start := time.Now()
	answer, err := rt.chat.Ask(r.Context(), question)
	if err != nil {
		return nil, err
	}

	if rt.metrics != nil {
		service := rt.cfg.ServiceName
		rt.metrics.RecordRAGObservation(service, endpoint, len(answer.Sources), time.Since(start))
		rt.metrics.RecordAnswer(service, endpoint, string(answer.Mode), answer.FallbackReason)
		rt.metrics.RecordTokenUsage(service, endpoint, rt.cfg.GenerationModel(), answer.Usage.PromptTokens, answer.Usage.CompletionTokens)
	}
	slog.Info("question_answered",
		"request_id", requestIDFromContext(r.Context()),
		"endpoint", endpoint,
		"mode", answer.Mode,
		"fallback_reason", answer.FallbackReason,
		"sources", len(answer.Sources),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return answer, nil
}

func validationErrors(err error) map[string]string {
	out := map[string]string{}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		out["body"] = err.Error()
		return out
	}
	for _, e := range errs {
		out[strings.ToLower(e.Field())] = "failed on '" + e.Tag() + "' tag"
	}
	return out
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		slog.Error("upload_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.openAPI)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
