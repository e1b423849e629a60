// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reply shapes.
const (
	ShapeOutput   = "output"
	ShapeParts    = "parts"
	ShapeMessages = "messages"
	ShapeMessage  = "message"
	ShapeString   = "string"
	ShapeArray    = "array"
	ShapeText     = "text"
	ShapeMeta     = "meta"
	ShapeRotate   = "rotate"
)

// Shapes lists every concrete shape in rotation order.
var Shapes = []string{ShapeOutput, ShapeParts, ShapeMessages, ShapeMessage, ShapeString, ShapeArray, ShapeText, ShapeMeta}

// Config controls replies.
type Config struct {
	// Shape of every reply (default: output).
	Shape string

	// Chunks splits the reply into this many writes; 1 sends it whole.
	Chunks int

	// ChunkDelay is the pause between chunks.
	ChunkDelay time.Duration

	// Reply produces the answer text; the default echoes the question.
	Reply func(userText string) string
}

// Request is the decoded body of one /chat call.
type Request struct {
	ChatInput      string `json:"chatInput"`
	UserText       string `json:"userText"`
	UserID         string `json:"user_id"`
	Session        string `json:"session"`
	SessionID      string `json:"sessionId"`
	ConversationID string `json:"conversationId"`
}

// Server is the mock assistant.
type Server struct {
	cfg    Config
	logger *zap.Logger
	router *chi.Mux

	mu       sync.Mutex
	requests []Request
	rotation int
}

// New builds the server and its routes.
func New(cfg Config, logger *zap.Logger) *Server {
	if cfg.Shape == "" {
		cfg.Shape = ShapeOutput
	}
	if cfg.Chunks <= 0 {
		cfg.Chunks = 1
	}
	if cfg.Reply == nil {
		cfg.Reply = EchoReply
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health)
	r.Post("/chat", s.chat)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// EchoReply is the default answer.
func EchoReply(userText string) string {
	return fmt.Sprintf("You asked: %q. This is the mock assistant; point the endpoint at the real one for answers.", userText)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	shape := r.URL.Query().Get("shape")
	if shape == "" {
		shape = s.cfg.Shape
	}
	if shape == ShapeRotate {
		shape = Shapes[s.rotation%len(Shapes)]
		s.rotation++
	}
	s.mu.Unlock()

	text := req.ChatInput
	if text == "" {
		text = req.UserText
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	body, err := Encode(shape, s.cfg.Reply(text), sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	chunks := s.cfg.Chunks
	if v, err := strconv.Atoi(r.URL.Query().Get("chunks")); err == nil && v > 0 {
		chunks = v
	}

	if shape == ShapeText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	s.writeChunked(w, r, body, chunks)
}

// writeChunked sends body in n roughly equal pieces, flushing after each.
func (s *Server) writeChunked(w http.ResponseWriter, r *http.Request, body []byte, n int) {
	flusher, _ := w.(http.Flusher)
	size := (len(body) + n - 1) / n
	if size == 0 {
		size = len(body)
	}

	for start := 0; start < len(body); start += size {
		end := min(start+size, len(body))
		if _, err := w.Write(body[start:end]); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if end < len(body) && s.cfg.ChunkDelay > 0 {
			select {
			case <-time.After(s.cfg.ChunkDelay):
			case <-r.Context().Done():
				return
			}
		}
	}
}

// Encode renders answer in the given shape.
func Encode(shape, answer, sessionID string) ([]byte, error) {
	var v any
	switch shape {
	case ShapeOutput:
		v = map[string]any{"output": answer, "sessionId": sessionID}
	case ShapeParts:
		v = map[string]any{"parts": splitWords(answer), "session_id": sessionID}
	case ShapeMessages:
		v = map[string]any{"messages": []any{map[string]string{"text": answer}}, "conversationId": sessionID}
	case ShapeMessage:
		v = map[string]any{"message": answer, "session": map[string]string{"id": sessionID}}
	case ShapeString:
		v = answer
	case ShapeArray:
		v = []any{map[string]any{"output": answer, "sessionId": sessionID}}
	case ShapeMeta:
		v = map[string]any{"output": answer, "meta": map[string]string{"sessionId": sessionID}}
	case ShapeText:
		return []byte(answer), nil
	default:
		return nil, fmt.Errorf("unknown shape %q", shape)
	}
	return json.Marshal(v)
}

// splitWords keeps the separating spaces so the parts join back exactly.
func splitWords(s string) []string {
	words := strings.SplitAfter(s, " ")
	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)))
	})
}
