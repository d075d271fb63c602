package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/lisavoice/orderstatus/internal/ivr"
	"github.com/lisavoice/orderstatus/pkg/logging"
)

// maxTranscriptionRunes caps the transcription text embedded in the
// notification body. Anything longer is noise from a runaway recording.
const maxTranscriptionRunes = 4000

// VoicemailNotifier emails recorded voice messages to the support inbox.
// With no recipients configured it is a logged no-op, never an error: a
// misconfigured inbox must not break the transcription webhook.
type VoicemailNotifier struct {
	sender     EmailSender
	recipients []string
	logger     *logging.Logger
}

func NewVoicemailNotifier(sender EmailSender, recipients []string, logger *logging.Logger) *VoicemailNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	var cleaned []string
	for _, r := range recipients {
		if addr := strings.TrimSpace(r); addr != "" {
			cleaned = append(cleaned, addr)
		}
	}
	return &VoicemailNotifier{sender: sender, recipients: cleaned, logger: logger}
}

// SendVoicemailNotice implements the engine's notification contract.
func (n *VoicemailNotifier) SendVoicemailNotice(ctx context.Context, notice ivr.VoicemailNotice) error {
	if n.sender == nil || len(n.recipients) == 0 {
		n.logger.Warn("voicemail notifications disabled", "caller", notice.CallerNumber)
		return nil
	}

	msg := EmailMessage{
		Subject: fmt.Sprintf("Neue Sprachnachricht von %s", notice.CallerNumber),
		Body:    n.buildBody(notice),
	}
	var firstErr error
	for _, recipient := range n.recipients {
		msg.To = recipient
		if err := n.sender.Send(ctx, msg); err != nil {
			n.logger.Error("voicemail notification failed", "to", recipient, "caller", notice.CallerNumber, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("notify: voicemail email to %s: %w", recipient, err)
			}
		}
	}
	return firstErr
}

func (n *VoicemailNotifier) buildBody(notice ivr.VoicemailNotice) string {
	transcription := notice.Transcription
	if runes := []rune(transcription); len(runes) > maxTranscriptionRunes {
		transcription = string(runes[:maxTranscriptionRunes])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Anrufer: %s\n", notice.CallerNumber)
	fmt.Fprintf(&b, "Sprache: %s\n", notice.Language)
	if notice.OrderNumber != "" {
		fmt.Fprintf(&b, "Bestellnummer: %s\n", notice.OrderNumber)
	}
	if notice.DurationSecs > 0 {
		fmt.Fprintf(&b, "Dauer: %d Sekunden\n", notice.DurationSecs)
	}
	if notice.RecordingURL != "" {
		fmt.Fprintf(&b, "Aufnahme: %s\n", notice.RecordingURL)
	}
	b.WriteString("\nTranskription:\n")
	if transcription == "" {
		b.WriteString("(keine Transkription verfügbar)")
	} else {
		b.WriteString(transcription)
	}
	return b.String()
}
