// kindway - donation matching platform
// Copyright (C) 2025  kindway contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Sender delivers a single email. The consumer decides whether to retry.
type Sender interface {
	Send(ctx context.Context, email OutboundEmail) error
}

// HTTPSender posts emails to a ZeptoMail-compatible JSON API.
type HTTPSender struct {
	apiURL     string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewHTTPSender creates an HTTPSender. apiKey is sent verbatim in the
// Authorization header, e.g. "Zoho-enczapikey ...".
func NewHTTPSender(apiURL, apiKey, from string) *HTTPSender {
	return &HTTPSender{
		apiURL:     apiURL,
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type recipient struct {
	Email emailAddress `json:"email_address"`
}

type emailRequest struct {
	From     emailAddress   `json:"from"`
	To       []recipient    `json:"to"`
	ReplyTo  []emailAddress `json:"reply_to,omitempty"`
	Subject  string         `json:"subject"`
	TextBody string         `json:"textbody,omitempty"`
	HTMLBody string         `json:"htmlbody,omitempty"`
}

// Send implements Sender. Any non-2xx answer is an error.
func (s *HTTPSender) Send(ctx context.Context, email OutboundEmail) error {
	req := emailRequest{
		From:     emailAddress{Address: s.from},
		To:       []recipient{{Email: emailAddress{Address: email.To, Name: email.ToName}}},
		Subject:  email.Subject,
		TextBody: email.Text,
		HTMLBody: email.HTML,
	}
	if email.ReplyTo != "" {
		req.ReplyTo = []emailAddress{{Address: email.ReplyTo}}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail api returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// LogSender only logs. Useful for local runs of mail-sender.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(_ context.Context, email OutboundEmail) error {
	log.Printf("mail-sender: [dry-run] to=%s subject=%q\n%s", email.To, email.Subject, email.Text)
	return nil
}
