package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const translatorSystemPrompt = "You are a professional translator. " +
	"Provide only the translation without any additional comments or explanations."

// OpenAIClient talks to an OpenAI-compatible API for both transcription
// (audio/transcriptions) and translation (chat/completions).
type OpenAIClient struct {
	BaseURL        string
	APIKey         string
	WhisperModel   string
	TranslateModel string
	Client         *http.Client
}

func NewOpenAIClient(baseURL, apiKey, whisperModel, translateModel string) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if whisperModel == "" {
		whisperModel = "whisper-1"
	}
	if translateModel == "" {
		translateModel = "gpt-4o-mini"
	}
	return &OpenAIClient{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		APIKey:         apiKey,
		WhisperModel:   whisperModel,
		TranslateModel: translateModel,
		Client:         &http.Client{Timeout: 5 * time.Minute},
	}
}

type openAIChatReq struct {
	Model       string          `json:"model"`
	Messages    []openAIChatMsg `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResp struct {
	Choices []struct {
		Message openAIChatMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe uploads the audio file and returns the plain-text transcript.
func (c *OpenAIClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if c.Client == nil {
		return "", errors.New("openai: http client is nil")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return "", errors.New("openai: api key is required")
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", c.WhisperModel); err != nil {
		return "", err
	}
	if err := mw.WriteField("response_format", "text"); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/audio/transcriptions", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai: transcription status %d: %s", resp.StatusCode, truncate(string(raw), 256))
	}
	return strings.TrimSpace(string(raw)), nil
}

// Translate asks the chat model for the translation. The prompt tells the
// model to return the text unchanged when it is already in the target
// language, matching user expectations for mixed-language audio.
func (c *OpenAIClient) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if c.Client == nil {
		return "", errors.New("openai: http client is nil")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return "", errors.New("openai: api key is required")
	}

	prompt := fmt.Sprintf(
		"Translate the following text to %s.\nIf the text is already in %s, return it as is.\n\nText to translate:\n%s\n\nTranslation:",
		targetLanguage, targetLanguage, text,
	)
	reqBody := openAIChatReq{
		Model:       c.TranslateModel,
		Temperature: 0.1,
		Messages: []openAIChatMsg{
			{Role: "system", Content: translatorSystemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return "", fmt.Errorf("openai: chat status %d: %s", resp.StatusCode, truncate(string(raw), 256))
	}

	var decoded openAIChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
