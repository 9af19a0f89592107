package speech

import "net/http"

// config holds shared configuration for transcriber implementations.
type config struct {
	model      string
	language   string
	baseURL    string
	httpClient *http.Client
}

// Option configures a transcriber.
type Option func(*config)

// WithModel sets the transcription model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithLanguage sets the expected spoken language (ISO-639-1 code).
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}
