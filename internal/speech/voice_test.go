package speech

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/speech/tts"
)

type cannedSynth struct{ err error }

func (c cannedSynth) Name() string { return "canned" }

func (c cannedSynth) Synthesize(context.Context, string) (*tts.Result, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &tts.Result{Audio: []byte("wav"), ContentType: "audio/wav", Ext: ".wav"}, nil
}

type memStorage struct {
	paths     []string
	uploadErr error
}

func (m *memStorage) Upload(_ context.Context, path string, _ []byte, _ string) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.paths = append(m.paths, path)
	return "https://cdn.test/" + path, nil
}

func (m *memStorage) Delete(context.Context, string) error { return nil }

func TestSpeakUploadsAudio(t *testing.T) {
	store := &memStorage{}
	v := NewVoice(cannedSynth{}, store)
	v.newID = func() string { return "clip-1" }

	clip, err := v.Speak(context.Background(), "u1", "s1", "Hello there.")
	require.NoError(t, err)
	assert.Equal(t, "clip-1.wav", clip.File)
	assert.Equal(t, "https://cdn.test/users/u1/sessions/s1/audio/clip-1.wav", clip.URL)
	assert.Equal(t, []string{"users/u1/sessions/s1/audio/clip-1.wav"}, store.paths)
}

func TestSpeakFailures(t *testing.T) {
	_, err := NewVoice(cannedSynth{err: apperr.Provider("synthesize speech", errors.New("503"))}, &memStorage{}).
		Speak(context.Background(), "u1", "s1", "hi")
	assert.ErrorIs(t, err, apperr.ErrProvider)

	_, err = NewVoice(cannedSynth{}, &memStorage{uploadErr: errors.New("denied")}).
		Speak(context.Background(), "u1", "s1", "hi")
	assert.ErrorIs(t, err, apperr.ErrProvider)

	_, err = NewVoice(cannedSynth{}, &memStorage{}).Speak(context.Background(), "u1", "s1", "")
	assert.Error(t, err)
}
