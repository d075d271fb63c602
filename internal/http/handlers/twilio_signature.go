package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ValidateTwilioSignature validates that a webhook request came from Twilio
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}

	// Parse form data
	if err := r.ParseForm(); err != nil {
		return false
	}

	// Build the signature payload
	payload := buildSignaturePayload(webhookURL, r.PostForm)

	// Compute expected signature
	expectedSignature := computeSignature(payload, authToken)

	return hmac.Equal([]byte(signature), []byte(expectedSignature))
}

// buildSignaturePayload creates the payload string for signature verification
func buildSignaturePayload(url string, params url.Values) string {
	// Get all keys and sort them
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Build payload: URL + sorted params
	var payload strings.Builder
	payload.WriteString(url)

	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}

	return payload.String()
}

// computeSignature computes the HMAC-SHA1 signature
func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// buildAbsoluteURL reconstructs the public URL the provider signed against,
// honoring proxy forwarding headers.
func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
