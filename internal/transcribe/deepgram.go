package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lisavoice/orderstatus/pkg/logging"
)

const defaultDeepgramURL = "https://api.deepgram.com/v1/listen"

// DeepgramConfig controls the Deepgram client.
type DeepgramConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// DeepgramProvider transcribes recordings through the Deepgram REST API.
// Deepgram fetches the audio from the URL itself, so the recording must be
// reachable from the outside.
type DeepgramProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewDeepgramProvider(cfg DeepgramConfig) (*DeepgramProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("transcribe: deepgram API key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultDeepgramURL
	}
	model := cfg.Model
	if model == "" {
		model = "nova-2"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &DeepgramProvider{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe sends the recording URL to Deepgram and returns the first
// channel's best transcript.
func (p *DeepgramProvider) Transcribe(ctx context.Context, audioURL, language string) (string, error) {
	if strings.TrimSpace(audioURL) == "" {
		return "", errors.New("transcribe: audio URL required")
	}
	lang := language
	switch language {
	case "de", "en":
	case "de-DE", "":
		lang = "de"
	case "en-US", "en-GB":
		lang = "en"
	default:
		lang = "de"
	}

	body, err := json.Marshal(map[string]string{"url": audioURL})
	if err != nil {
		return "", fmt.Errorf("transcribe: marshal request: %w", err)
	}
	q := url.Values{}
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("model", p.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("transcribe: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: deepgram request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("transcribe: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcribe: deepgram status %d", resp.StatusCode)
	}

	var parsed deepgramResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		p.logger.Warn("deepgram returned no transcript", "audio_url", audioURL)
		return "", nil
	}
	transcript := parsed.Results.Channels[0].Alternatives[0].Transcript
	p.logger.Info("deepgram transcription complete", "chars", len(transcript), "language", lang)
	return transcript, nil
}
