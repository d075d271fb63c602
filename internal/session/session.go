// Package session keeps the per-call dialogue state between webhook
// invocations. The telephony platform delivers each keypress as an
// independent HTTP request, so the conversation "session" lives here, keyed
// by the platform's call identifier. The audit log in the calls package is
// written alongside but never read back for control flow.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// State names the dialogue position the next webhook request resumes from.
type State string

const (
	StateGreeting          State = "greeting"
	StateAwaitConsent      State = "await_consent"
	StateAwaitAvailability State = "await_availability"
	StateAwaitOrderNumber  State = "await_order_number"
	StateAwaitConfirmation State = "await_confirmation"
	StateAwaitMoreHelp     State = "await_more_help"
	StateVoicemailChoice   State = "voicemail_choice"
	StateRecording         State = "recording"
	StateEscalated         State = "escalated"
	StateDone              State = "done"
)

// ErrNotFound is returned when no session exists for a call identifier.
var ErrNotFound = errors.New("session: not found")

// Session is the small structured record kept per live call.
type Session struct {
	CallSID        string    `json:"call_sid"`
	CallID         uuid.UUID `json:"call_id"`
	CallerNumber   string    `json:"caller_number"`
	Language       string    `json:"language"`
	State          State     `json:"state"`
	OrderCandidate string    `json:"order_candidate,omitempty"`
	OrderNumber    string    `json:"order_number,omitempty"`
	RecordingURL   string    `json:"recording_url,omitempty"`
	RecordingSecs  int       `json:"recording_secs,omitempty"`
	Retries        int       `json:"retries"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Store persists call sessions and the one-shot email guard.
type Store interface {
	// Get returns the session for callSID or ErrNotFound.
	Get(ctx context.Context, callSID string) (*Session, error)
	// Save upserts the session.
	Save(ctx context.Context, s *Session) error
	// Delete drops the session once the call reaches a terminal state.
	Delete(ctx context.Context, callSID string) error
	// MarkEmailAttempt records a notification attempt and reports whether
	// the caller may proceed; a second attempt within cooldown returns false.
	MarkEmailAttempt(ctx context.Context, callSID string, cooldown time.Duration) (bool, error)
	// EmailSent reports whether the notification for this call already
	// went out successfully.
	EmailSent(ctx context.Context, callSID string) (bool, error)
	// MarkEmailSent flips the per-call sent flag exactly once; the second
	// and later calls return false. Callers set it only after a successful
	// send so a failed delivery stays retryable.
	MarkEmailSent(ctx context.Context, callSID string) (bool, error)
}
