package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/docchat/internal/auth"
	"github.com/nikhilbhutani/docchat/internal/rag"
	"github.com/nikhilbhutani/docchat/internal/speech"
	"github.com/nikhilbhutani/docchat/internal/speech/stt"
	"github.com/nikhilbhutani/docchat/internal/summary"
	"github.com/nikhilbhutani/docchat/internal/summary/pdf"
)

type ChatHandler struct {
	chat      *rag.ChatService
	stt       stt.Transcriber
	voice     *speech.Voice
	summaries *summary.Service
	renderer  *pdf.Renderer
}

func NewChatHandler(chat *rag.ChatService, transcriber stt.Transcriber, voice *speech.Voice, summaries *summary.Service, renderer *pdf.Renderer) *ChatHandler {
	return &ChatHandler{chat: chat, stt: transcriber, voice: voice, summaries: summaries, renderer: renderer}
}

type voiceAnswer struct {
	Query     string `json:"query"`
	Answer    string `json:"answer"`
	AudioURL  string `json:"audio_url"`
	AudioFile string `json:"audio_file"`
}

// Ask answers a recorded question with JSON and spoken audio, or streams the
// answer to a typed question as plain text.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		badRequest(w, "invalid form")
		return
	}
	userID := auth.UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "session_id")

	audio, filename, err := formFile(r, "audio_file")
	switch {
	case err != nil:
		badRequest(w, "could not read audio_file")
	case audio != nil:
		h.askByVoice(w, r, userID, sessionID, audio, filename)
	case strings.TrimSpace(r.FormValue("question")) != "":
		h.askByText(w, r, userID, sessionID, r.FormValue("question"))
	default:
		badRequest(w, "No question or audio file provided")
	}
}

func (h *ChatHandler) askByVoice(w http.ResponseWriter, r *http.Request, userID, sessionID string, audio []byte, filename string) {
	ctx := r.Context()
	question, ok := h.transcribe(w, r, audio, filename)
	if !ok {
		return
	}

	answer, err := h.chat.AskBlocking(ctx, userID, sessionID, question)
	if err != nil {
		writeError(w, r, err)
		return
	}

	clip, err := h.voice.Speak(ctx, userID, sessionID, answer)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, voiceAnswer{Query: question, Answer: answer, AudioURL: clip.URL, AudioFile: clip.File})
}

func (h *ChatHandler) askByText(w http.ResponseWriter, r *http.Request, userID, sessionID, question string) {
	ctx := r.Context()
	turn, err := h.chat.Ask(ctx, userID, sessionID, question)
	if err != nil {
		writeError(w, r, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	_, err = h.chat.Stream(ctx, turn, func(word string) error {
		if _, err := io.WriteString(w, word); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	switch {
	case errors.Is(err, context.Canceled):
		slog.Info("client left before the answer finished", "session_id", sessionID)
	case err != nil:
		slog.Error("answer stream failed", "session_id", sessionID, "error", err)
	}
}

func (h *ChatHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "session_id")

	sum, err := h.summaries.Summarize(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writePDF(w, r, userID, sessionID, sum, "Summary_Of_Chat_"+sessionID+".pdf")
}

// SummarizeAudio summarizes a recorded consultation without touching the
// session's message log.
func (h *ChatHandler) SummarizeAudio(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		badRequest(w, "invalid form")
		return
	}
	audio, filename, err := formFile(r, "audio_file")
	if err != nil || audio == nil {
		badRequest(w, "audio_file required")
		return
	}

	transcript, ok := h.transcribe(w, r, audio, filename)
	if !ok {
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "session_id")
	sum := h.summaries.SummarizeText(r.Context(), transcript)
	h.writePDF(w, r, userID, sessionID, sum, "Summary_"+sessionID+".pdf")
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	msgs, err := h.chat.History(r.Context(), auth.UserIDFromContext(r.Context()), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "messages": msgs})
}

func (h *ChatHandler) transcribe(w http.ResponseWriter, r *http.Request, audio []byte, filename string) (string, bool) {
	text, err := h.stt.Transcribe(r.Context(), audio, filename)
	if err != nil {
		writeError(w, r, err)
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		badRequest(w, "Transcription failed or empty")
		return "", false
	}
	return text, true
}

func (h *ChatHandler) writePDF(w http.ResponseWriter, r *http.Request, userID, sessionID string, sum *summary.Summary, filename string) {
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, userID, sessionID, sum); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// parseForm accepts multipart and urlencoded bodies.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxUploadSize)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// formFile returns nil data when the field is absent.
func formFile(r *http.Request, field string) ([]byte, string, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, "", nil
	}
	f, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}
