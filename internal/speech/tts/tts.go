// Package tts synthesizes spoken answers.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/config"
)

type Result struct {
	Audio       []byte
	ContentType string // "audio/mpeg" (OpenAI) or "audio/wav" (Piper)
	Ext         string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Result, error)
	Name() string
}

// New picks the backend named in cfg.
func New(cfg config.TTSConfig) (Synthesizer, error) {
	switch cfg.Backend {
	case "", "openai":
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.Voice), nil
	case "local":
		if cfg.LocalModel == "" {
			return nil, errors.New("piper model path is required (set TTS_LOCAL_PIPER_MODEL)")
		}
		return NewPiper(cfg.LocalBinPath, cfg.LocalModel), nil
	default:
		return nil, fmt.Errorf("unknown TTS backend %q", cfg.Backend)
	}
}

type OpenAI struct {
	client *openai.Client
	model  string
	voice  string
}

func NewOpenAI(apiKey, baseURL, model, voice string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, voice: voice}
}

func (o *OpenAI) Name() string { return "openai-tts" }

func (o *OpenAI) Synthesize(ctx context.Context, text string) (*Result, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.SpeechVoice(o.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, apperr.Provider("synthesize speech", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, apperr.Provider("read speech", err)
	}
	return &Result{Audio: audio, ContentType: "audio/mpeg", Ext: ".mp3"}, nil
}

// Piper pipes text through a local Piper binary. Voice and speed come from
// the model file, not runtime flags.
type Piper struct {
	bin   string
	model string
}

func NewPiper(bin, model string) *Piper {
	if bin == "" {
		bin = "piper"
	}
	return &Piper{bin: bin, model: model}
}

func (p *Piper) Name() string { return "local-piper" }

func (p *Piper) Synthesize(ctx context.Context, text string) (*Result, error) {
	cmd := exec.CommandContext(ctx, p.bin, "--model", p.model, "--output_file", "-")
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, apperr.Provider("piper", fmt.Errorf("%w (stderr: %s)", err, strings.TrimSpace(stderr.String())))
	}
	return &Result{Audio: stdout.Bytes(), ContentType: "audio/wav", Ext: ".wav"}, nil
}
