// Package ivr drives the order-status phone dialogue. Each webhook request
// resumes the conversation from the session store, produces exactly one
// voice-markup response, and leaves the call either gathering more input or
// terminated. Persistence failures never interrupt the spoken dialogue.
package ivr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lisavoice/orderstatus/internal/afterbuy"
	"github.com/lisavoice/orderstatus/internal/calls"
	"github.com/lisavoice/orderstatus/internal/observability/metrics"
	"github.com/lisavoice/orderstatus/internal/session"
	"github.com/lisavoice/orderstatus/internal/twiml"
	"github.com/lisavoice/orderstatus/pkg/logging"
)

// Webhook action paths the gather/record verbs point back at.
const (
	PathIncoming        = "/webhooks/voice/incoming"
	PathConsent         = "/webhooks/voice/consent"
	PathAvailability    = "/webhooks/voice/availability"
	PathOrderNumber     = "/webhooks/voice/order-number"
	PathOrderConfirm    = "/webhooks/voice/order-confirm"
	PathMoreHelp        = "/webhooks/voice/more-help"
	PathVoicemailChoice = "/webhooks/voice/voicemail-choice"
	PathRecorded        = "/webhooks/voice/recorded"
	PathTranscription   = "/webhooks/voice/transcription"
	PathRecordingStatus = "/webhooks/voice/recording-status"
)

// Conversation step tags written to the audit log.
const (
	stepGreeting            = "greeting"
	stepConsent             = "consent"
	stepConsentResponse     = "consent_response"
	stepConsentDeclined     = "consent_declined_but_continued"
	stepInvalidConsent      = "invalid_consent"
	stepAvailability        = "order_availability"
	stepOrderInput          = "order_input"
	stepInvalidOrder        = "invalid_order_response"
	stepConfirmRequest      = "order_confirmation_request"
	stepOrderConfirmed      = "order_confirmed"
	stepOrderRejected       = "order_rejected"
	stepInvalidConfirmation = "invalid_confirmation"
	stepStatusResponse      = "status_response"
	stepMoreHelp            = "more_help"
	stepVoicemailRequest    = "voice_message_request"
	stepVoicemailRecorded   = "voice_message_recorded"
	stepTransferToManager   = "transfer_to_manager"
	stepNoOrderTransfer     = "no_order_transfer_to_manager"
)

// Input carries the webhook form fields the engine consumes.
type Input struct {
	CallSID             string
	From                string
	Digits              string
	SpeechResult        string
	RecordingURL        string
	RecordingSID        string
	RecordingDuration   int
	RecordingStatus     string
	TranscriptionText   string
	TranscriptionStatus string
}

// OrderLookup resolves an order number against the order-management system.
type OrderLookup interface {
	GetOrderByInvoiceNumber(ctx context.Context, invoiceNumber string) (*afterbuy.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (*afterbuy.Order, error)
}

// CallStore persists the audit trail. Writes are best effort from the
// engine's point of view.
type CallStore interface {
	GetOrCreateCall(ctx context.Context, callSID, phoneNumber, language string) (*calls.Call, error)
	UpdateCallStatus(ctx context.Context, id uuid.UUID, status calls.Status) error
	AppendStep(ctx context.Context, callID uuid.UUID, step, userInput, botResponse string) error
	UpdateLatestStepInput(ctx context.Context, callID uuid.UUID, step, userInput string) error
	InsertOrderRecord(ctx context.Context, rec calls.OrderRecord) (uuid.UUID, error)
	AppendOrderNotes(ctx context.Context, callID uuid.UUID, text string) error
}

// VoicemailNotice is what the notification dispatcher needs to email a
// recorded message to the support inbox.
type VoicemailNotice struct {
	CallerNumber  string
	RecordingURL  string
	Transcription string
	DurationSecs  int
	Language      string
	OrderNumber   string
}

// Notifier dispatches voicemail notification emails.
type Notifier interface {
	SendVoicemailNotice(ctx context.Context, n VoicemailNotice) error
}

// Transcriber converts a recording into text for deployments where the
// telephony platform does not deliver transcription callbacks.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL, language string) (string, error)
}

// Config wires the engine's collaborators and dialogue policy.
type Config struct {
	Sessions        session.Store
	Calls           CallStore
	Lookup          OrderLookup
	Notifier        Notifier
	Transcriber     Transcriber
	Metrics         *metrics.CallMetrics
	Logger          *logging.Logger
	VoiceName       string
	DefaultLanguage string
	OperatorNumber  string
	MaxInputRetries int
	RecordMaxSecs   int
	EmailCooldown   time.Duration
	Now             func() time.Time
}

// Engine is the call conversation state machine.
type Engine struct {
	sessions      session.Store
	calls         CallStore
	lookup        OrderLookup
	notifier      Notifier
	transcriber   Transcriber
	metrics       *metrics.CallMetrics
	logger        *logging.Logger
	voice         string
	defaultLang   string
	operator      string
	maxRetries    int
	recordMaxSecs int
	emailCooldown time.Duration
	now           func() time.Time
}

// NewEngine creates the state machine. Sessions, Calls and Lookup are
// required; everything else has a default.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("ivr: session store is required")
	}
	if cfg.Calls == nil {
		return nil, errors.New("ivr: call store is required")
	}
	if cfg.Lookup == nil {
		return nil, errors.New("ivr: order lookup is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	voice := cfg.VoiceName
	if voice == "" {
		voice = "alice"
	}
	defaultLang := cfg.DefaultLanguage
	if defaultLang == "" {
		defaultLang = "de"
	}
	operator := cfg.OperatorNumber
	if operator == "" {
		operator = "+4973929378421"
	}
	maxRetries := cfg.MaxInputRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	recordMax := cfg.RecordMaxSecs
	if recordMax <= 0 {
		recordMax = 60
	}
	cooldown := cfg.EmailCooldown
	if cooldown <= 0 {
		cooldown = 2 * time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		sessions:      cfg.Sessions,
		calls:         cfg.Calls,
		lookup:        cfg.Lookup,
		notifier:      cfg.Notifier,
		transcriber:   cfg.Transcriber,
		metrics:       cfg.Metrics,
		logger:        logger,
		voice:         voice,
		defaultLang:   defaultLang,
		operator:      operator,
		maxRetries:    maxRetries,
		recordMaxSecs: recordMax,
		emailCooldown: cooldown,
		now:           now,
	}, nil
}

// callerLanguage resolves the prompt language for a caller. Numbers outside
// the English country prefixes use the configured default language.
func (e *Engine) callerLanguage(callerNumber string) string {
	if lang := DetectLanguage(callerNumber); lang == "en" {
		return lang
	}
	return e.defaultLang
}

// HandleIncomingCall greets the caller and asks for recording consent.
func (e *Engine) HandleIncomingCall(ctx context.Context, in Input) *twiml.Response {
	lang := e.callerLanguage(in.From)
	e.logger.Info("incoming call", "call_sid", in.CallSID, "from", in.From, "language", lang)

	sess := &session.Session{
		CallSID:      in.CallSID,
		CallerNumber: in.From,
		Language:     lang,
		State:        session.StateAwaitConsent,
	}
	call, err := e.calls.GetOrCreateCall(ctx, in.CallSID, in.From, lang)
	if err != nil {
		e.logger.Error("create call record", "call_sid", in.CallSID, "error", err)
	} else {
		sess.CallID = call.ID
	}
	e.saveSession(ctx, sess)

	text := greeting(lang)
	e.appendStep(ctx, sess, stepGreeting, "", text)

	resp := twiml.New().Say(text, e.voice, lang)
	resp.Gather(twiml.Gather{
		Input:     "dtmf",
		Action:    PathConsent,
		Timeout:   15,
		NumDigits: 1,
		Say:       &twiml.Say{Voice: e.voice, Language: lang, Text: consentRetry(lang)},
	})
	return e.sayGoodbye(resp, lang)
}

// HandleConsent records the consent choice. Both consenting and declining
// continue the call; the decline is only noted in the audit trail.
func (e *Engine) HandleConsent(ctx context.Context, in Input) *twiml.Response {
	sess, lang := e.resume(ctx, in)
	e.appendStep(ctx, sess, stepConsent, in.Digits, "")

	var ack string
	switch in.Digits {
	case "1":
		ack = consentAccepted(lang)
		e.appendStep(ctx, sess, stepConsentResponse, "", ack)
	case "2":
		e.logger.Info("consent declined, continuing", "call_sid", in.CallSID)
		ack = consentDeclined(lang)
		e.appendStep(ctx, sess, stepConsentDeclined, "", ack)
	default:
		return e.retryOrEscalate(ctx, sess, lang, stepInvalidConsent, consentRetry(lang), twiml.Gather{
			Input:     "dtmf",
			Action:    PathConsent,
			Timeout:   15,
			NumDigits: 1,
		})
	}
	e.updateCallStatus(ctx, sess, calls.StatusHandled)
	sess.State = session.StateAwaitAvailability
	sess.Retries = 0
	e.saveSession(ctx, sess)

	resp := twiml.New().Say(ack, e.voice, lang)
	resp.Say(availabilityPrompt(lang), e.voice, lang)
	resp.Gather(twiml.Gather{
		Input:     "dtmf",
		Action:    PathAvailability,
		Timeout:   15,
		NumDigits: 1,
	})
	return e.sayGoodbye(resp, lang)
}

// HandleAvailability branches on whether the caller has the order number at
// hand. Without it there is nothing to automate, so the call goes to a human.
func (e *Engine) HandleAvailability(ctx context.Context, in Input) *twiml.Response {
	sess, lang := e.resume(ctx, in)
	e.appendStep(ctx, sess, stepAvailability, in.Digits, "")

	switch in.Digits {
	case "1":
		sess.State = session.StateAwaitOrderNumber
		sess.Retries = 0
		e.saveSession(ctx, sess)
		resp := twiml.New().Say(orderNumberPrompt(lang), e.voice, lang)
		resp.Gather(twiml.Gather{
			Input:       "dtmf",
			Action:      PathOrderNumber,
			Timeout:     30,
			FinishOnKey: "#",
		})
		return e.sayGoodbye(resp, lang)
	case "2":
		return e.escalate(ctx, sess, lang, "no_order_number", transferAnnouncement(lang))
	default:
		return e.retryOrEscalate(ctx, sess, lang, stepAvailability, availabilityPrompt(lang), twiml.Gather{
			Input:     "dtmf",
			Action:    PathAvailability,
			Timeout:   15,
			NumDigits: 1,
		})
	}
}

// HandleOrderNumber validates keypad input and asks for confirmation. Empty
// input means the gather timed out, which always hands off to the operator.
func (e *Engine) HandleOrderNumber(ctx context.Context, in Input) *twiml.Response {
	sess, lang := e.resume(ctx, in)
	e.appendStep(ctx, sess, stepOrderInput, in.Digits, "")

	if in.Digits == "" {
		e.metrics.ObserveEscalation("empty_order_number")
		return e.escalate(ctx, sess, lang, stepNoOrderTransfer, noOrderTransfer(lang))
	}

	ok, reason := ValidateOrderNumber(in.Digits, lang)
	if !ok {
		e.logger.Warn("order number rejected", "call_sid", in.CallSID, "input", in.Digits, "reason", reason)
		text := orderNumberInvalid(lang, in.Digits) + " " + orderNumberRetry(lang)
		return e.retryOrEscalate(ctx, sess, lang, stepInvalidOrder, text, twiml.Gather{
			Input:       "dtmf",
			Action:      PathOrderNumber,
			Timeout:     30,
			FinishOnKey: "#",
		})
	}

	sess.OrderCandidate = in.Digits
	sess.State = session.StateAwaitConfirmation
	sess.Retries = 0
	e.saveSession(ctx, sess)

	prompt := confirmationPrompt(lang, FormatOrderNumberForSpeech(in.Digits))
	e.appendStep(ctx, sess, stepConfirmRequest, "", prompt)

	resp := twiml.New().Say(prompt, e.voice, lang)
	resp.Gather(twiml.Gather{
		Input:     "dtmf",
		Action:    PathOrderConfirm,
		Timeout:   10,
		NumDigits: 1,
	})
	return e.sayGoodbye(resp, lang)
}

// HandleOrderConfirm resolves the confirmed number or loops back to entry.
func (e *Engine) HandleOrderConfirm(ctx context.Context, in Input) *twiml.Response {
	sess, lang := e.resume(ctx, in)
	candidate := sess.OrderCandidate
	if candidate == "" {
		// Session lost mid-confirmation; start number entry over.
		sess.State = session.StateAwaitOrderNumber
		sess.Retries = 0
		e.saveSession(ctx, sess)
		resp := twiml.New().Say(orderNumberRetry(lang), e.voice, lang)
		resp.Gather(twiml.Gather{
			Input:       "dtmf",
			Action:      PathOrderNumber,
			Timeout:     30,
			FinishOnKey: "#",
		})
		return e.sayGoodbye(resp, lang)
	}

	switch in.Digits {
	case "1":
		e.appendStep(ctx, sess, stepOrderConfirmed, "1", "")
		return e.resolveOrder(ctx, sess, lang, candidate)
	case "2":
		e.appendStep(ctx, sess, stepOrderRejected, "2", "")
		sess.OrderCandidate = ""
		sess.State = session.StateAwaitOrderNumber
		sess.Retries = 0
		e.saveSession(ctx, sess)
		resp := twiml.New().Say(orderNumberRetry(lang), e.voice, lang)
		resp.Gather(twiml.Gather{
			Input:       "dtmf",
			Action:      PathOrderNumber,
			Timeout:     30,
			FinishOnKey: "#",
		})
		return e.sayGoodbye(resp, lang)
	default:
		text := confirmationRetry(lang, FormatOrderNumberForSpeech(candidate))
		return e.retryOrEscalate(ctx, sess, lang, stepInvalidConfirmation, text, twiml.Gather{
			Input:     "dtmf",
			Action:    PathOrderConfirm,
			Timeout:   10,
			NumDigits: 1,
		})
	}
}

// resolveOrder looks the confirmed number up, speaks the outcome and decides
// between the normal flow, a not-found apology and the overdue escalation.
func (e *Engine) resolveOrder(ctx context.Context, sess *session.Session, lang, number string) *twiml.Response {
	spoken := FormatOrderNumberForSpeech(number)
	resp := twiml.New().Say(checkingStatus(lang, spoken), e.voice, lang)
	resp.Pause(2)

	order, err := e.findOrder(ctx, number)
	if err != nil {
		if !errors.Is(err, afterbuy.ErrOrderNotFound) {
			// Upstream failure reads the same as not-found to the caller.
			e.logger.Error("order lookup failed", "call_sid", sess.CallSID, "order_number", number, "error", err)
			e.metrics.ObserveLookup("upstream_error")
		} else {
			e.metrics.ObserveLookup("not_found")
		}
		text := orderNotFound(lang, spoken)
		e.appendStep(ctx, sess, stepStatusResponse, "", text)
		e.insertOrderRecord(ctx, sess, calls.OrderRecord{
			CallID:      sess.CallID,
			OrderNumber: number,
			Status:      calls.OrderStatusNotFound,
			Notes:       "Order not found in Afterbuy system",
		})
		resp.Say(text, e.voice, lang)
		return e.offerMoreHelp(ctx, resp, sess, lang)
	}

	sess.OrderNumber = number
	est := EstimateDelivery(order.OrderDate, order.Buyer.Country)

	if IsOverdue(est.PromisedDelivery, e.now()) {
		e.metrics.ObserveLookup("overdue")
		e.metrics.ObserveEscalation("overdue")
		text := overdueApology(lang)
		e.appendStep(ctx, sess, stepStatusResponse, "", text)
		e.insertOrderRecord(ctx, sess, calls.OrderRecord{
			CallID:               sess.CallID,
			OrderNumber:          number,
			Status:               calls.OrderStatusOverdue,
			Notes:                fmt.Sprintf("Promised delivery %s exceeded", est.WindowEnd),
			PromisedDeliveryDate: est.PromisedDelivery,
		})
		e.updateCallStatus(ctx, sess, calls.StatusProblem)
		sess.State = session.StateEscalated
		e.saveSession(ctx, sess)
		resp.Say(text, e.voice, lang)
		resp.Dial(e.operator, sess.CallerNumber)
		return resp
	}

	e.metrics.ObserveLookup("found")
	text := statusNarrative(lang, order, est)
	e.appendStep(ctx, sess, stepStatusResponse, "", text)
	e.insertOrderRecord(ctx, sess, calls.OrderRecord{
		CallID:               sess.CallID,
		OrderNumber:          number,
		Status:               calls.OrderStatusFound,
		Notes:                fmt.Sprintf("Order found: %s - %s %s", order.InvoiceNumber, order.Buyer.FirstName, order.Buyer.LastName),
		PromisedDeliveryDate: est.PromisedDelivery,
	})
	resp.Say(text, e.voice, lang)
	return e.offerMoreHelp(ctx, resp, sess, lang)
}

// findOrder tries the caller's number as an invoice number first, then as an
// Afterbuy order id. First success wins.
func (e *Engine) findOrder(ctx context.Context, number string) (*afterbuy.Order, error) {
	order, err := e.lookup.GetOrderByInvoiceNumber(ctx, number)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, afterbuy.ErrOrderNotFound) {
		return nil, err
	}
	return e.lookup.GetOrderByID(ctx, number)
}

func (e *Engine) offerMoreHelp(ctx context.Context, resp *twiml.Response, sess *session.Session, lang string) *twiml.Response {
	sess.State = session.StateVoicemailChoice
	sess.Retries = 0
	e.saveSession(ctx, sess)
	resp.Say(moreHelpPrompt(lang), e.voice, lang)
	resp.Gather(twiml.Gather{
		Input:     "dtmf",
		Action:    PathVoicemailChoice,
		Timeout:   10,
		NumDigits: 1,
	})
	return e.sayGoodbye(resp, lang)
}

// HandleMoreHelp is the free-speech follow-up branch: an affirmative answer
// loops back to order-number entry, anything else ends the call.
func (e *Engine) HandleMoreHelp(ctx context.Context, in Input) *twiml.Response {
	sess, lang := e.resume(ctx, in)
	e.appendStep(ctx, sess, stepMoreHelp, in.SpeechResult, "")

	if isAffirmative(in.SpeechResult) {
		sess.State = session.StateAwaitOrderNumber
		sess.Retries = 0
		sess.OrderCandidate = ""
		e.saveSession(ctx, sess)
		resp := twiml.New().Say(anotherOrderPrompt(lang), e.voice, lang)
		resp.Gather(twiml.Gather{
			Input:       "dtmf",
			Action:      PathOrderNumber,
			Timeout:     30,
			FinishOnKey: "#",
		})
		return e.sayGoodbye(resp, lang)
	}

	e.updateCallStatus(ctx, sess, calls.StatusCompleted)
	sess.State = session.StateDone
	e.saveSession(ctx, sess)
	return twiml.New().Say(goodbye(lang), e.voice, lang).Hangup()
}

// HandleVoicemailChoice starts a recording or hands off to the operator.
func (e *Engine) HandleVoicemailChoice(ctx context.Context, in Input) *twiml.Response {
	sess, lang := e.resume(ctx, in)

	switch in.Digits {
	case "1":
		sess.State = session.StateRecording
		sess.Retries = 0
		e.saveSession(ctx, sess)
		prompt := recordPrompt(lang)
		e.appendStep(ctx, sess, stepVoicemailRequest, "", prompt)
		resp := twiml.New().Say(prompt, e.voice, lang)
		resp.Record(twiml.Record{
			MaxLength:               e.recordMaxSecs,
			Action:                  PathRecorded,
			FinishOnKey:             "#",
			Transcribe:              true,
			TranscribeCallback:      PathTranscription,
			RecordingStatusCallback: PathRecordingStatus,
		})
		return resp
	case "2":
		return e.escalate(ctx, sess, lang, stepTransferToManager, transferAnnouncement(lang))
	default:
		return e.retryOrEscalate(ctx, sess, lang, stepMoreHelp, moreHelpRetry(lang), twiml.Gather{
			Input:     "dtmf",
			Action:    PathVoicemailChoice,
			Timeout:   10,
			NumDigits: 1,
		})
	}
}

// HandleRecorded thanks the caller after the voicemail and closes the call.
// Transcription arrives later through its own callback.
func (e *Engine) HandleRecorded(ctx context.Context, in Input) *twiml.Response {
	sess, lang := e.resume(ctx, in)
	e.logger.Info("voicemail recorded", "call_sid", in.CallSID, "recording_url", in.RecordingURL, "duration", in.RecordingDuration)

	transcript := in.TranscriptionText
	if transcript == "" {
		transcript = fmt.Sprintf("Voice message recorded (URL: %s)", in.RecordingURL)
	}
	thanks := recordedThanks(lang)
	e.appendStep(ctx, sess, stepVoicemailRecorded, transcript, thanks)
	e.appendOrderNotes(ctx, sess, "Voice message: "+transcript)
	e.updateCallStatus(ctx, sess, calls.StatusCompleted)

	sess.RecordingURL = in.RecordingURL
	sess.RecordingSecs = in.RecordingDuration
	sess.State = session.StateDone
	e.saveSession(ctx, sess)

	// Without a platform transcription callback the configured provider
	// fills the gap; the result flows through the same dedup guards.
	if in.TranscriptionText == "" && e.transcriber != nil && in.RecordingURL != "" {
		text, err := e.transcriber.Transcribe(ctx, in.RecordingURL, lang)
		switch {
		case err != nil:
			e.logger.Error("transcription provider failed", "call_sid", in.CallSID, "error", err)
		case text != "":
			provided := in
			provided.TranscriptionText = text
			if err := e.HandleTranscription(ctx, provided); err != nil {
				e.logger.Error("provider transcription dispatch", "call_sid", in.CallSID, "error", err)
			}
		}
	}

	return twiml.New().Say(thanks, e.voice, lang).Hangup()
}

// HandleTranscription stores the transcription text and dispatches the
// notification email at most once per call, guarded against duplicate and
// rapid-fire callbacks.
func (e *Engine) HandleTranscription(ctx context.Context, in Input) error {
	if in.TranscriptionText == "" {
		return nil
	}
	sess, err := e.sessions.Get(ctx, in.CallSID)
	if err != nil {
		e.logger.Warn("transcription for unknown session", "call_sid", in.CallSID, "error", err)
		return nil
	}
	if sess.CallID != uuid.Nil {
		if err := e.calls.UpdateLatestStepInput(ctx, sess.CallID, stepVoicemailRecorded, in.TranscriptionText); err != nil {
			e.logger.Error("update transcription step", "call_sid", in.CallSID, "error", err)
		}
		e.appendOrderNotes(ctx, sess, "Voice message transcription: "+in.TranscriptionText)
	}

	if e.notifier == nil {
		return nil
	}
	ok, err := e.sessions.MarkEmailAttempt(ctx, in.CallSID, e.emailCooldown)
	if err != nil {
		return fmt.Errorf("ivr: email attempt guard: %w", err)
	}
	if !ok {
		e.logger.Info("voicemail email suppressed by cooldown", "call_sid", in.CallSID)
		e.metrics.ObserveEmail("suppressed")
		return nil
	}
	sent, err := e.sessions.EmailSent(ctx, in.CallSID)
	if err != nil {
		return fmt.Errorf("ivr: email sent guard: %w", err)
	}
	if sent {
		e.metrics.ObserveEmail("duplicate")
		return nil
	}

	notice := VoicemailNotice{
		CallerNumber:  sess.CallerNumber,
		RecordingURL:  sess.RecordingURL,
		Transcription: in.TranscriptionText,
		DurationSecs:  sess.RecordingSecs,
		Language:      sess.Language,
		OrderNumber:   sess.OrderNumber,
	}
	if in.RecordingURL != "" {
		notice.RecordingURL = in.RecordingURL
	}
	if in.RecordingDuration > 0 {
		notice.DurationSecs = in.RecordingDuration
	}
	if err := e.notifier.SendVoicemailNotice(ctx, notice); err != nil {
		// Leave the sent flag unset; the next callback past the attempt
		// cooldown retries the delivery.
		e.logger.Error("voicemail email failed", "call_sid", in.CallSID, "error", err)
		e.metrics.ObserveEmail("failed")
		return nil
	}
	if _, err := e.sessions.MarkEmailSent(ctx, in.CallSID); err != nil {
		e.logger.Error("mark voicemail email sent", "call_sid", in.CallSID, "error", err)
	}
	e.metrics.ObserveEmail("sent")
	return nil
}

// HandleRecordingStatus stores the recording artifact reference.
func (e *Engine) HandleRecordingStatus(ctx context.Context, in Input) error {
	if in.RecordingURL == "" {
		return nil
	}
	sess, err := e.sessions.Get(ctx, in.CallSID)
	if err != nil {
		return nil
	}
	sess.RecordingURL = in.RecordingURL
	if in.RecordingDuration > 0 {
		sess.RecordingSecs = in.RecordingDuration
	}
	e.saveSession(ctx, sess)
	e.appendOrderNotes(ctx, sess, "Voice message URL: "+in.RecordingURL)
	return nil
}

// FallbackResponse is the apology every handler falls back to when response
// construction itself fails. The caller must always hear something.
func (e *Engine) FallbackResponse(callerNumber string) *twiml.Response {
	lang := e.callerLanguage(callerNumber)
	return twiml.New().Say(apology(lang), e.voice, lang).Hangup()
}

// resume loads the session for the request, rebuilding a minimal one when
// the store lost it (expiry, Redis restart).
func (e *Engine) resume(ctx context.Context, in Input) (*session.Session, string) {
	sess, err := e.sessions.Get(ctx, in.CallSID)
	if err == nil {
		if sess.CallerNumber == "" {
			sess.CallerNumber = in.From
		}
		return sess, sess.Language
	}
	if !errors.Is(err, session.ErrNotFound) {
		e.logger.Error("load session", "call_sid", in.CallSID, "error", err)
	}
	lang := e.callerLanguage(in.From)
	sess = &session.Session{
		CallSID:      in.CallSID,
		CallerNumber: in.From,
		Language:     lang,
	}
	if call, cerr := e.calls.GetOrCreateCall(ctx, in.CallSID, in.From, lang); cerr == nil {
		sess.CallID = call.ID
	} else {
		e.logger.Error("recreate call record", "call_sid", in.CallSID, "error", cerr)
	}
	return sess, lang
}

// retryOrEscalate re-prompts for the current state until the retry budget is
// spent, then hands the call to the operator instead of looping forever.
func (e *Engine) retryOrEscalate(ctx context.Context, sess *session.Session, lang, step, prompt string, gather twiml.Gather) *twiml.Response {
	sess.Retries++
	if sess.Retries >= e.maxRetries {
		e.metrics.ObserveEscalation("retries_exhausted")
		return e.escalate(ctx, sess, lang, stepTransferToManager, transferAnnouncement(lang))
	}
	e.saveSession(ctx, sess)
	e.appendStep(ctx, sess, step, "", prompt)
	resp := twiml.New().Say(prompt, e.voice, lang)
	resp.Gather(gather)
	return e.sayGoodbye(resp, lang)
}

// escalate announces the transfer and dials the operator with the caller's
// own number as presented caller id.
func (e *Engine) escalate(ctx context.Context, sess *session.Session, lang, step, announcement string) *twiml.Response {
	e.appendStep(ctx, sess, step, "", announcement)
	e.updateCallStatus(ctx, sess, calls.StatusHandled)
	sess.State = session.StateEscalated
	e.saveSession(ctx, sess)
	return twiml.New().Say(announcement, e.voice, lang).Dial(e.operator, sess.CallerNumber)
}

func (e *Engine) sayGoodbye(resp *twiml.Response, lang string) *twiml.Response {
	return resp.Say(goodbye(lang), e.voice, lang).Hangup()
}

func (e *Engine) saveSession(ctx context.Context, sess *session.Session) {
	if err := e.sessions.Save(ctx, sess); err != nil {
		e.logger.Error("save session", "call_sid", sess.CallSID, "error", err)
	}
}

func (e *Engine) appendStep(ctx context.Context, sess *session.Session, step, userInput, botResponse string) {
	if sess.CallID == uuid.Nil {
		return
	}
	if err := e.calls.AppendStep(ctx, sess.CallID, step, userInput, botResponse); err != nil {
		e.logger.Error("append conversation step", "call_sid", sess.CallSID, "step", step, "error", err)
	}
}

func (e *Engine) updateCallStatus(ctx context.Context, sess *session.Session, status calls.Status) {
	if sess.CallID == uuid.Nil {
		return
	}
	if err := e.calls.UpdateCallStatus(ctx, sess.CallID, status); err != nil {
		e.logger.Error("update call status", "call_sid", sess.CallSID, "status", status, "error", err)
	}
}

func (e *Engine) insertOrderRecord(ctx context.Context, sess *session.Session, rec calls.OrderRecord) {
	if sess.CallID == uuid.Nil {
		return
	}
	if _, err := e.calls.InsertOrderRecord(ctx, rec); err != nil {
		e.logger.Error("insert order record", "call_sid", sess.CallSID, "order_number", rec.OrderNumber, "error", err)
	}
}

func (e *Engine) appendOrderNotes(ctx context.Context, sess *session.Session, text string) {
	if sess.CallID == uuid.Nil {
		return
	}
	if err := e.calls.AppendOrderNotes(ctx, sess.CallID, text); err != nil {
		e.logger.Error("append order notes", "call_sid", sess.CallSID, "error", err)
	}
}
