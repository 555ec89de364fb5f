package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmorgan81/imagegen/internal/feed"
	"github.com/dmorgan81/imagegen/internal/handler"
	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/prompt"
	"github.com/dmorgan81/imagegen/internal/session"
	"github.com/dmorgan81/imagegen/internal/store"
	"github.com/gorilla/mux"
	"github.com/samber/do"
)

const (
	maxBodyBytes    = 10 << 20
	serviceName     = "AI Image Generator API"
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	handler *handler.Handler
	router  *mux.Router
	srv     *http.Server
}

func NewServer(i *do.Injector) (*Server, error) {
	return New(
		do.MustInvokeNamed[context.Context](i, "root_context"),
		do.MustInvoke[*handler.Handler](i),
		do.MustInvokeNamed[string](i, "addr"),
	), nil
}

// New builds a server whose request contexts derive from ctx, so the logger
// it carries reaches every handler.
func New(ctx context.Context, h *handler.Handler, addr string) *Server {
	s := &Server{handler: h, router: mux.NewRouter()}
	s.routes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(enableCORS, withSession, withLogger)

	r.HandleFunc("/api/health", s.health).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/generate", s.generate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/prompts/sample", s.sample).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/images", s.listImages).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/images", s.clearImages).Methods("DELETE")
	r.HandleFunc("/api/images/export", s.exportAll).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/images/{id}/download", s.download).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/images/{id}/export", s.export).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/images/{id}/regenerate", s.regenerate).Methods("POST", "OPTIONS")
	r.HandleFunc("/feed.rss", s.feed(feed.RSS, "application/rss+xml")).Methods("GET")
	r.HandleFunc("/feed.atom", s.feed(feed.Atom, "application/atom+xml")).Methods("GET")
	r.HandleFunc("/", s.page).Methods("GET")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe(ctx context.Context) error {
	log.FromContextOrDiscard(ctx).Info("starting server", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

type generateRequest struct {
	Prompt  string        `json:"prompt"`
	Options image.Options `json:"options"`
}

type generateResponse struct {
	Success        bool          `json:"success"`
	Images         []image.Image `json:"images"`
	EnhancedPrompt string        `json:"enhancedPrompt"`
	Warning        string        `json:"warning,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   serviceName,
	})
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.FromContextOrDiscard(r.Context()).Info("invalid request body", "error", err)
		writeJSON(r.Context(), w, http.StatusBadRequest, errorBody("Invalid request body"))
		return
	}

	out, err := s.handler.Generate(r.Context(), sessionID(r.Context()), req.Prompt, req.Options)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, generateResponse{
		Success:        true,
		Images:         out.Images,
		EnhancedPrompt: out.EnhancedPrompt,
		Warning:        out.Warning,
	})
}

func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	out, err := s.handler.Regenerate(r.Context(), sessionID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, generateResponse{
		Success:        true,
		Images:         out.Images,
		EnhancedPrompt: out.EnhancedPrompt,
		Warning:        out.Warning,
	})
}

func (s *Server) sample(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"prompt": s.handler.Sample(r.Context())})
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	images := s.handler.Images(r.Context(), sessionID(r.Context()))
	if images == nil {
		images = []image.Image{}
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"images": images, "count": len(images)})
}

func (s *Server) clearImages(w http.ResponseWriter, r *http.Request) {
	n := s.handler.Clear(r.Context(), sessionID(r.Context()))
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"success": true, "cleared": n})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	img, err := s.handler.Image(r.Context(), sessionID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	data, contentType, err := store.Decode(img)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+store.FileName(img, 0)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	name, err := s.handler.Export(r.Context(), sessionID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"success": true, "file": name})
}

func (s *Server) exportAll(w http.ResponseWriter, r *http.Request) {
	files, err := s.handler.ExportAll(r.Context(), sessionID(r.Context()))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"success": true, "count": len(files), "files": files})
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	html, err := s.handler.Page(r.Context(), sessionID(r.Context()))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(html)
}

func (s *Server) feed(format feed.Format, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := s.handler.Feed(r.Context(), sessionID(r.Context()), format)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		w.Header().Set("Content-Type", contentType+"; charset=utf-8")
		_, _ = w.Write(data)
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// statusFor maps a handler error onto an HTTP status and a client-facing
// message.
func statusFor(err error) (int, string) {
	var verr *prompt.ValidationError
	var gerr *image.GenerationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, session.ErrGenerationInProgress):
		return http.StatusConflict, "Image generation is already in progress"
	case errors.Is(err, session.ErrImageNotFound):
		return http.StatusNotFound, "Image not found"
	case errors.As(err, &gerr):
		return http.StatusInternalServerError, gerr.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	log := log.FromContextOrDiscard(ctx)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "error", err)
	} else {
		log.Info("request rejected", "status", status, "error", err)
	}
	writeJSON(ctx, w, status, errorBody(msg))
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContextOrDiscard(ctx).Error("failed to write response", "error", err)
	}
}
