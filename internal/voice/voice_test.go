package voice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openclaw/interview-server-go/internal/errors"
)

func TestTranscriber_Transcribe(t *testing.T) {
	t.Run("uploads the file and returns text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/audio/transcriptions", r.URL.Path)
			assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "whisper-1", r.FormValue("model"))

			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, "recording_1.ogg", header.Filename)
			assert.Equal(t, "audio-bytes", string(data))

			json.NewEncoder(w).Encode(map[string]string{"text": " I like Python "})
		}))
		defer srv.Close()

		path := filepath.Join(t.TempDir(), "recording_1.ogg")
		require.NoError(t, os.WriteFile(path, []byte("audio-bytes"), 0o600))

		text, err := NewTranscriber(srv.URL, "key", "whisper-1").Transcribe(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "I like Python", text)
	})

	t.Run("fails on upstream error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.Copy(io.Discard, r.Body)
			http.Error(w, "audio too short", http.StatusBadRequest)
		}))
		defer srv.Close()

		path := filepath.Join(t.TempDir(), "empty.ogg")
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		_, err := NewTranscriber(srv.URL, "", "whisper-1").Transcribe(context.Background(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "audio too short")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeExternal))
	})

	t.Run("fails on missing file", func(t *testing.T) {
		_, err := NewTranscriber("http://127.0.0.1:0", "", "m").Transcribe(context.Background(), "/nonexistent.ogg")
		assert.Error(t, err)
	})
}

func TestSynthesizer_Synthesize(t *testing.T) {
	t.Run("posts text and returns audio", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/audio/speech", r.URL.Path)
			var req speechRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, speechRequest{Model: "tts-1", Input: "Hello", Voice: "alloy", ResponseFormat: "mp3"}, req)
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Write([]byte("mp3-bytes"))
		}))
		defer srv.Close()

		audio, err := NewSynthesizer(srv.URL, "", "tts-1", "alloy", "mp3").Synthesize(context.Background(), "Hello")
		require.NoError(t, err)
		assert.Equal(t, []byte("mp3-bytes"), audio)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		_, err := NewSynthesizer("http://127.0.0.1:0", "", "tts-1", "alloy", "mp3").Synthesize(context.Background(), " ")
		assert.Error(t, err)
	})

	t.Run("rejects empty audio", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		_, err := NewSynthesizer(srv.URL, "", "tts-1", "alloy", "mp3").Synthesize(context.Background(), "Hello")
		assert.Error(t, err)
	})
}
