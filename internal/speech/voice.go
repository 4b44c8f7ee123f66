// Package speech connects transcription and synthesis to the rest of the
// service.
package speech

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/speech/tts"
	"github.com/nikhilbhutani/docchat/internal/storage"
)

type Clip struct {
	File string `json:"file"`
	URL  string `json:"url"`
}

// Voice speaks answers and publishes the audio to object storage.
type Voice struct {
	synth   tts.Synthesizer
	storage storage.Storage
	newID   func() string
}

func NewVoice(synth tts.Synthesizer, store storage.Storage) *Voice {
	return &Voice{synth: synth, storage: store, newID: func() string { return uuid.NewString() }}
}

func (v *Voice) Speak(ctx context.Context, userID, sessionID, text string) (*Clip, error) {
	if text == "" {
		return nil, errors.New("nothing to speak")
	}
	res, err := v.synth.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.synth.Name(), err)
	}

	file := v.newID() + res.Ext
	url, err := v.storage.Upload(ctx, storage.AudioPath(userID, sessionID, file), res.Audio, res.ContentType)
	if err != nil {
		return nil, apperr.Provider("upload audio", err)
	}
	return &Clip{File: file, URL: url}, nil
}
