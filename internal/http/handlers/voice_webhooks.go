package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lisavoice/orderstatus/internal/ivr"
	"github.com/lisavoice/orderstatus/internal/observability/metrics"
	"github.com/lisavoice/orderstatus/internal/twiml"
	"github.com/lisavoice/orderstatus/pkg/logging"
)

var voiceTracer = otel.Tracer("orderstatus.internal.http.voice")

var errInvalidSignature = errors.New("handlers: invalid webhook signature")

// VoiceWebhookConfig carries the dependencies for the voice webhook endpoints.
type VoiceWebhookConfig struct {
	Engine  *ivr.Engine
	Metrics *metrics.CallMetrics
	Logger  *logging.Logger

	// TwilioAuthToken enables signature validation when non-empty.
	TwilioAuthToken string
	// PublicBaseURL overrides the reconstructed request URL for signature
	// checks when the service sits behind a proxy that rewrites paths.
	PublicBaseURL string
}

// VoiceWebhookHandler serves the telephony provider's call webhooks. Every
// call-flow endpoint answers with TwiML, even on internal failure, so the
// caller never hears dead air.
type VoiceWebhookHandler struct {
	engine    *ivr.Engine
	metrics   *metrics.CallMetrics
	logger    *logging.Logger
	authToken string
	baseURL   string
}

// NewVoiceWebhookHandler builds the webhook handler.
func NewVoiceWebhookHandler(cfg VoiceWebhookConfig) (*VoiceWebhookHandler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("handlers: voice webhook handler requires an engine")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &VoiceWebhookHandler{
		engine:    cfg.Engine,
		metrics:   cfg.Metrics,
		logger:    logger,
		authToken: cfg.TwilioAuthToken,
		baseURL:   cfg.PublicBaseURL,
	}, nil
}

// Register mounts every voice webhook route on the given mux.
func (h *VoiceWebhookHandler) Register(mux interface {
	Post(pattern string, handler http.HandlerFunc)
}) {
	mux.Post(ivr.PathIncoming, h.IncomingCall)
	mux.Post(ivr.PathConsent, h.Consent)
	mux.Post(ivr.PathAvailability, h.Availability)
	mux.Post(ivr.PathOrderNumber, h.OrderNumber)
	mux.Post(ivr.PathOrderConfirm, h.OrderConfirm)
	mux.Post(ivr.PathMoreHelp, h.MoreHelp)
	mux.Post(ivr.PathVoicemailChoice, h.VoicemailChoice)
	mux.Post(ivr.PathRecorded, h.Recorded)
	mux.Post(ivr.PathTranscription, h.Transcription)
	mux.Post(ivr.PathRecordingStatus, h.RecordingStatus)
}

// IncomingCall answers a newly connected call.
func (h *VoiceWebhookHandler) IncomingCall(w http.ResponseWriter, r *http.Request) {
	h.serveCallStep(w, r, "incoming", h.engine.HandleIncomingCall)
}

// Consent handles the recording consent keypress.
func (h *VoiceWebhookHandler) Consent(w http.ResponseWriter, r *http.Request) {
	h.serveCallStep(w, r, "consent", h.engine.HandleConsent)
}

// Availability handles the "is your order number at hand" keypress.
func (h *VoiceWebhookHandler) Availability(w http.ResponseWriter, r *http.Request) {
	h.serveCallStep(w, r, "availability", h.engine.HandleAvailability)
}

// OrderNumber handles the dictated or keyed order number.
func (h *VoiceWebhookHandler) OrderNumber(w http.ResponseWriter, r *http.Request) {
	h.serveCallStep(w, r, "order_number", h.engine.HandleOrderNumber)
}

// OrderConfirm handles the read-back confirmation keypress.
func (h *VoiceWebhookHandler) OrderConfirm(w http.ResponseWriter, r *http.Request) {
	h.serveCallStep(w, r, "order_confirm", h.engine.HandleOrderConfirm)
}

// MoreHelp handles the spoken yes/no after a status answer.
func (h *VoiceWebhookHandler) MoreHelp(w http.ResponseWriter, r *http.Request) {
	h.serveCallStep(w, r, "more_help", h.engine.HandleMoreHelp)
}

// VoicemailChoice handles the voicemail-or-operator keypress.
func (h *VoiceWebhookHandler) VoicemailChoice(w http.ResponseWriter, r *http.Request) {
	h.serveCallStep(w, r, "voicemail_choice", h.engine.HandleVoicemailChoice)
}

// Recorded handles the end of a voicemail recording.
func (h *VoiceWebhookHandler) Recorded(w http.ResponseWriter, r *http.Request) {
	h.serveCallStep(w, r, "recorded", h.engine.HandleRecorded)
}

// Transcription receives the asynchronous transcription callback. It is not
// part of the call flow, so it answers with a plain status code.
func (h *VoiceWebhookHandler) Transcription(w http.ResponseWriter, r *http.Request) {
	h.serveCallback(w, r, "transcription", h.engine.HandleTranscription)
}

// RecordingStatus receives the asynchronous recording status callback.
func (h *VoiceWebhookHandler) RecordingStatus(w http.ResponseWriter, r *http.Request) {
	h.serveCallback(w, r, "recording_status", h.engine.HandleRecordingStatus)
}

func (h *VoiceWebhookHandler) serveCallStep(w http.ResponseWriter, r *http.Request, endpoint string, fn func(context.Context, ivr.Input) *twiml.Response) {
	ctx, span := voiceTracer.Start(r.Context(), "voice."+endpoint)
	defer span.End()
	start := time.Now()

	in, err := h.parseInput(r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "signature validation failed")
		h.logger.Warn("rejected voice webhook", "endpoint", endpoint, "error", err)
		h.metrics.ObserveWebhook(endpoint, "unauthorized")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}
	span.SetAttributes(
		attribute.String("call.sid", in.CallSID),
		attribute.String("voice.endpoint", endpoint),
	)

	resp := h.callEngine(ctx, endpoint, in, fn)
	h.writeTwiML(w, resp, in.From)

	h.metrics.ObserveWebhook(endpoint, "ok")
	h.metrics.ObserveWebhookLatency(endpoint, time.Since(start).Seconds())
}

// callEngine runs an engine step and converts any panic into the spoken
// fallback so the endpoint still yields TwiML.
func (h *VoiceWebhookHandler) callEngine(ctx context.Context, endpoint string, in ivr.Input, fn func(context.Context, ivr.Input) *twiml.Response) (resp *twiml.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("voice webhook panicked", "endpoint", endpoint, "call_sid", in.CallSID, "panic", rec)
			resp = h.engine.FallbackResponse(in.From)
		}
	}()
	return fn(ctx, in)
}

func (h *VoiceWebhookHandler) serveCallback(w http.ResponseWriter, r *http.Request, endpoint string, fn func(context.Context, ivr.Input) error) {
	ctx, span := voiceTracer.Start(r.Context(), "voice."+endpoint)
	defer span.End()
	start := time.Now()

	in, err := h.parseInput(r)
	if err != nil {
		span.RecordError(err)
		h.metrics.ObserveWebhook(endpoint, "unauthorized")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}
	span.SetAttributes(attribute.String("call.sid", in.CallSID))

	if err := fn(ctx, in); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "callback failed")
		h.logger.Error("voice callback failed", "endpoint", endpoint, "call_sid", in.CallSID, "error", err)
		h.metrics.ObserveWebhook(endpoint, "error")
		http.Error(w, "callback failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	h.metrics.ObserveWebhook(endpoint, "ok")
	h.metrics.ObserveWebhookLatency(endpoint, time.Since(start).Seconds())
}

// parseInput validates the provider signature when configured and maps the
// webhook form fields into an engine input.
func (h *VoiceWebhookHandler) parseInput(r *http.Request) (ivr.Input, error) {
	if h.authToken != "" {
		webhookURL := h.baseURL
		if webhookURL != "" {
			webhookURL += r.URL.RequestURI()
		} else {
			webhookURL = buildAbsoluteURL(r)
		}
		if !ValidateTwilioSignature(r, h.authToken, webhookURL) {
			return ivr.Input{}, errInvalidSignature
		}
	}
	if err := r.ParseForm(); err != nil {
		return ivr.Input{}, errInvalidSignature
	}

	duration, _ := strconv.Atoi(r.FormValue("RecordingDuration"))
	return ivr.Input{
		CallSID:             r.FormValue("CallSid"),
		From:                r.FormValue("From"),
		Digits:              r.FormValue("Digits"),
		SpeechResult:        r.FormValue("SpeechResult"),
		RecordingURL:        r.FormValue("RecordingUrl"),
		RecordingSID:        r.FormValue("RecordingSid"),
		RecordingDuration:   duration,
		RecordingStatus:     r.FormValue("RecordingStatus"),
		TranscriptionText:   r.FormValue("TranscriptionText"),
		TranscriptionStatus: r.FormValue("TranscriptionStatus"),
	}, nil
}

func (h *VoiceWebhookHandler) writeTwiML(w http.ResponseWriter, resp *twiml.Response, caller string) {
	body, err := resp.Render()
	if err != nil {
		h.logger.Error("render twiml failed", "error", err)
		if fallback, ferr := h.engine.FallbackResponse(caller).Render(); ferr == nil {
			body = fallback
		} else {
			body = `<?xml version="1.0" encoding="UTF-8"?><Response><Hangup/></Response>`
		}
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}
