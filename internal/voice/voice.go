// Package voice converts candidate audio to text and interviewer text to
// audio through an OpenAI compatible audio API.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/openclaw/interview-server-go/internal/errors"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	maxErrorBody   = 512
)

type client struct {
	apiKey string
	base   string
	http   *http.Client
}

func newClient(baseURL, apiKey string) client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return client{
		apiKey: apiKey,
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{},
	}
}

func (c client) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody] + "..."
		}
		return nil, apperrors.External("audio API", fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
	return body, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type Transcriber struct {
	client
	model string
}

func NewTranscriber(baseURL, apiKey, model string) *Transcriber {
	return &Transcriber{client: newClient(baseURL, apiKey), model: model}
}

// Transcribe uploads the utterance file as multipart form data.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer writer.Close()

		if err := writer.WriteField("model", t.model); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := writer.WriteField("response_format", "json"); err != nil {
			pw.CloseWithError(err)
			return
		}
		part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+"/audio/transcriptions", pr)
	if err != nil {
		pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := t.do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	var out transcriptionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type Synthesizer struct {
	client
	model  string
	voice  string
	format string
}

func NewSynthesizer(baseURL, apiKey, model, voice, format string) *Synthesizer {
	return &Synthesizer{client: newClient(baseURL, apiKey), model: model, voice: voice, format: format}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("nothing to synthesize")
	}

	payload, err := json.Marshal(speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: s.format,
	})
	if err != nil {
		return nil, fmt.Errorf("encode speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	audio, err := s.do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech response was empty")
	}
	return audio, nil
}
