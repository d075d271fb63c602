// Package transcribe abstracts where voicemail transcriptions come from. The
// default path is the telephony platform's built-in transcription, delivered
// through its own webhook; Deepgram can be opted in for better German
// accuracy.
package transcribe

import "context"

// Provider turns a recording reference into text.
type Provider interface {
	// Transcribe returns the transcript for the audio at audioURL in the
	// given language ("de" or "en"). An empty transcript with nil error
	// means the provider had nothing usable.
	Transcribe(ctx context.Context, audioURL, language string) (string, error)
}

// PlatformProvider relies on the telephony platform's own transcription,
// which arrives asynchronously via webhook. Calling it directly yields
// nothing; it exists so the engine's configuration always has a provider.
type PlatformProvider struct{}

func NewPlatformProvider() *PlatformProvider { return &PlatformProvider{} }

func (p *PlatformProvider) Transcribe(ctx context.Context, audioURL, language string) (string, error) {
	return "", nil
}
