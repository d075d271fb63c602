package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lisavoice/orderstatus/internal/afterbuy"
	"github.com/lisavoice/orderstatus/internal/calls"
	"github.com/lisavoice/orderstatus/internal/ivr"
	"github.com/lisavoice/orderstatus/internal/session"
)

type stubCallStore struct {
	steps []string
}

func (s *stubCallStore) GetOrCreateCall(_ context.Context, callSID, phoneNumber, language string) (*calls.Call, error) {
	return &calls.Call{
		ID:          uuid.New(),
		CallSID:     callSID,
		PhoneNumber: phoneNumber,
		Language:    language,
		Status:      calls.StatusProcessing,
	}, nil
}

func (s *stubCallStore) UpdateCallStatus(context.Context, uuid.UUID, calls.Status) error {
	return nil
}

func (s *stubCallStore) AppendStep(_ context.Context, _ uuid.UUID, step, _, _ string) error {
	s.steps = append(s.steps, step)
	return nil
}

func (s *stubCallStore) UpdateLatestStepInput(context.Context, uuid.UUID, string, string) error {
	return nil
}

func (s *stubCallStore) InsertOrderRecord(context.Context, calls.OrderRecord) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *stubCallStore) AppendOrderNotes(context.Context, uuid.UUID, string) error {
	return nil
}

type stubLookup struct{}

func (stubLookup) GetOrderByInvoiceNumber(context.Context, string) (*afterbuy.Order, error) {
	return nil, afterbuy.ErrOrderNotFound
}

func (stubLookup) GetOrderByID(context.Context, string) (*afterbuy.Order, error) {
	return nil, afterbuy.ErrOrderNotFound
}

func newTestHandler(t *testing.T, authToken string) *VoiceWebhookHandler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine, err := ivr.NewEngine(ivr.Config{
		Sessions: session.NewRedisStore(client, time.Hour),
		Calls:    &stubCallStore{},
		Lookup:   stubLookup{},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	h, err := NewVoiceWebhookHandler(VoiceWebhookConfig{
		Engine:          engine,
		TwilioAuthToken: authToken,
	})
	if err != nil {
		t.Fatalf("NewVoiceWebhookHandler: %v", err)
	}
	return h
}

func postForm(t *testing.T, handler http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestIncomingCallReturnsTwiML(t *testing.T) {
	h := newTestHandler(t, "")

	rec := postForm(t, h.IncomingCall, ivr.PathIncoming, url.Values{
		"CallSid": {"CA100"},
		"From":    {"+491701234567"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("Content-Type = %q, want text/xml", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Response>") {
		t.Fatalf("body is not TwiML: %q", body)
	}
	if !strings.Contains(body, "<Gather") {
		t.Fatalf("expected consent gather, got %q", body)
	}
	if !strings.Contains(body, "Lisa") {
		t.Fatalf("expected greeting, got %q", body)
	}
}

func TestSignatureRejection(t *testing.T) {
	h := newTestHandler(t, "token-123")

	rec := postForm(t, h.IncomingCall, ivr.PathIncoming, url.Values{
		"CallSid": {"CA101"},
		"From":    {"+491701234567"},
	})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestSignatureAccepted(t *testing.T) {
	const token = "token-123"
	h := newTestHandler(t, token)

	form := url.Values{
		"CallSid": {"CA102"},
		"From":    {"+491701234567"},
	}
	req := httptest.NewRequest(http.MethodPost, ivr.PathIncoming, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Host = "example.com"

	payload := buildSignaturePayload("http://example.com"+ivr.PathIncoming, form)
	req.Header.Set("X-Twilio-Signature", computeSignature(payload, token))

	rec := httptest.NewRecorder()
	h.IncomingCall(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "<Response>") {
		t.Fatalf("body is not TwiML: %q", rec.Body.String())
	}
}

func TestConsentWithoutPriorSessionStillAnswers(t *testing.T) {
	h := newTestHandler(t, "")

	rec := postForm(t, h.Consent, ivr.PathConsent, url.Values{
		"CallSid": {"CA103"},
		"From":    {"+491701234567"},
		"Digits":  {"1"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "<Response>") {
		t.Fatalf("body is not TwiML: %q", rec.Body.String())
	}
}

func TestRecordingStatusCallbackReturnsPlainOK(t *testing.T) {
	h := newTestHandler(t, "")

	rec := postForm(t, h.RecordingStatus, ivr.PathRecordingStatus, url.Values{
		"CallSid":         {"CA104"},
		"RecordingUrl":    {"https://api.example.com/rec/RE1"},
		"RecordingStatus": {"completed"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("callback endpoint should not answer TwiML, got %q", ct)
	}
}

func TestTranscriptionCallbackEmptyTextOK(t *testing.T) {
	h := newTestHandler(t, "")

	rec := postForm(t, h.Transcription, ivr.PathTranscription, url.Values{
		"CallSid":             {"CA105"},
		"TranscriptionStatus": {"failed"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestBuildAbsoluteURLHonorsForwardingHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice/incoming?x=1", nil)
	req.Host = "internal:8080"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "voice.example.com")

	got := buildAbsoluteURL(req)
	want := "https://voice.example.com/webhooks/voice/incoming?x=1"
	if got != want {
		t.Fatalf("buildAbsoluteURL = %q, want %q", got, want)
	}
}
