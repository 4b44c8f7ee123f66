// Package stt transcribes recorded questions.
package stt

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/config"
)

// Transcriber turns audio into text. An empty result is not an error here;
// callers decide what silence means.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	Name() string
}

// Whisper calls an OpenAI-compatible /audio/transcriptions endpoint: the
// hosted API, or a local whisper.cpp server started with
// ./server -m models/ggml-base.en.bin --port 8178
type Whisper struct {
	client *openai.Client
	model  string
	name   string
}

func NewOpenAI(apiKey, baseURL, model string) *Whisper {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{client: openai.NewClientWithConfig(cfg), model: model, name: "openai-whisper"}
}

func NewLocal(baseURL string) *Whisper {
	if baseURL == "" {
		baseURL = "http://localhost:8178"
	}
	w := NewOpenAI("", strings.TrimSuffix(baseURL, "/"), "")
	w.name = "local-whisper"
	return w
}

// New picks the backend named in cfg.
func New(cfg config.STTConfig) (Transcriber, error) {
	switch cfg.Backend {
	case "", "openai":
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	case "local":
		return NewLocal(cfg.LocalBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown STT backend %q", cfg.Backend)
	}
}

func (w *Whisper) Name() string { return w.name }

func (w *Whisper) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "audio.wav"
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filepath.Base(filename),
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", apperr.Provider("transcribe audio", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
