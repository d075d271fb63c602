package twiml

import (
	"strings"
	"testing"
)

func TestRenderSayHangup(t *testing.T) {
	doc, err := New().
		Say("Auf Wiedersehen", "alice", "de").
		Hangup().
		Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Fatalf("missing xml declaration: %s", doc)
	}
	if !strings.Contains(doc, `<Say voice="alice" language="de">Auf Wiedersehen</Say>`) {
		t.Fatalf("missing say verb: %s", doc)
	}
	if !strings.Contains(doc, "<Hangup></Hangup>") {
		t.Fatalf("missing hangup verb: %s", doc)
	}
}

func TestRenderGatherDefaultsMethod(t *testing.T) {
	doc, err := New().Gather(Gather{
		Input:     "dtmf",
		Timeout:   15,
		NumDigits: 1,
		Action:    "/webhooks/voice/consent",
		Say:       &Say{Text: "Druecken Sie 1 oder 2.", Language: "de"},
	}).Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(doc, `method="POST"`) {
		t.Fatalf("expected default POST method: %s", doc)
	}
	if !strings.Contains(doc, `action="/webhooks/voice/consent"`) {
		t.Fatalf("missing action: %s", doc)
	}
	if !strings.Contains(doc, "Druecken Sie 1 oder 2.") {
		t.Fatalf("missing nested prompt: %s", doc)
	}
}

func TestRenderRecordAndDial(t *testing.T) {
	doc, err := New().
		Record(Record{
			MaxLength:               60,
			Action:                  "/webhooks/voice/recorded",
			FinishOnKey:             "#",
			Transcribe:              true,
			TranscribeCallback:      "/webhooks/voice/transcription",
			RecordingStatusCallback: "/webhooks/voice/recording-status",
		}).
		Dial("+4973929378421", "+15550001111").
		Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		`maxLength="60"`,
		`transcribe="true"`,
		`transcribeCallback="/webhooks/voice/transcription"`,
		`<Dial callerId="+15550001111"><Number>+4973929378421</Number></Dial>`,
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("missing %q in %s", want, doc)
		}
	}
}

func TestVerbOrderPreserved(t *testing.T) {
	doc, err := New().
		Say("first", "", "").
		Pause(2).
		Say("second", "", "").
		Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	first := strings.Index(doc, "first")
	pause := strings.Index(doc, "<Pause")
	second := strings.Index(doc, "second")
	if !(first < pause && pause < second) {
		t.Fatalf("verbs out of order: %s", doc)
	}
}
