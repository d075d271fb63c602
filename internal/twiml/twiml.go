// Package twiml builds the voice-markup documents returned to the telephony
// platform. Every webhook response is one Response document: spoken text plus
// either an input-gathering directive with an action URL or a terminating
// verb (Dial transfer or Hangup).
package twiml

import (
	"encoding/xml"
	"fmt"
)

// Response is the root voice-markup document. Verbs render in append order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Say speaks text to the caller.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Gather collects DTMF digits or speech and posts them to Action.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	NumDigits     int      `xml:"numDigits,attr,omitempty"`
	FinishOnKey   string   `xml:"finishOnKey,attr,omitempty"`
	Language      string   `xml:"language,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Say           *Say
}

// Record captures caller audio and posts the recording to Action.
type Record struct {
	XMLName                 xml.Name `xml:"Record"`
	MaxLength               int      `xml:"maxLength,attr,omitempty"`
	Action                  string   `xml:"action,attr,omitempty"`
	Method                  string   `xml:"method,attr,omitempty"`
	FinishOnKey             string   `xml:"finishOnKey,attr,omitempty"`
	Transcribe              bool     `xml:"transcribe,attr,omitempty"`
	TranscribeCallback      string   `xml:"transcribeCallback,attr,omitempty"`
	RecordingStatusCallback string   `xml:"recordingStatusCallback,attr,omitempty"`
}

// Dial transfers the live call to another number.
type Dial struct {
	XMLName  xml.Name `xml:"Dial"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Number   string   `xml:"Number"`
}

// Pause waits the given number of seconds before the next verb.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

// Hangup terminates the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// New returns an empty response document.
func New() *Response {
	return &Response{}
}

// Say appends a spoken-text verb.
func (r *Response) Say(text, voice, language string) *Response {
	r.Verbs = append(r.Verbs, Say{Text: text, Voice: voice, Language: language})
	return r
}

// Gather appends an input-gathering verb.
func (r *Response) Gather(g Gather) *Response {
	if g.Method == "" {
		g.Method = "POST"
	}
	r.Verbs = append(r.Verbs, g)
	return r
}

// Record appends a recording verb.
func (r *Response) Record(rec Record) *Response {
	if rec.Method == "" {
		rec.Method = "POST"
	}
	r.Verbs = append(r.Verbs, rec)
	return r
}

// Dial appends a transfer verb.
func (r *Response) Dial(number, callerID string) *Response {
	r.Verbs = append(r.Verbs, Dial{Number: number, CallerID: callerID})
	return r
}

// Pause appends a pause verb.
func (r *Response) Pause(seconds int) *Response {
	r.Verbs = append(r.Verbs, Pause{Length: seconds})
	return r
}

// Hangup appends a terminating verb.
func (r *Response) Hangup() *Response {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

// Render marshals the document with the XML declaration the platform expects.
func (r *Response) Render() (string, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("twiml: marshal response: %w", err)
	}
	return `<?xml version="1.0" encoding="UTF-8"?>` + string(body), nil
}
