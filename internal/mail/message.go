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

// Package mail carries outbound email through a Kafka outbox: producers
// publish OutboundEmails, the mail-sender consumer delivers them through an
// HTTP email API.
package mail

// OutboundEmail is the JSON record on the mail-outbox topic.
//
//	{
//	  "id":      "550e8400-e29b-41d4-a716-446655440000",
//	  "to":      "contact@ngo.org",
//	  "to_name": "Annapurna Trust",
//	  "subject": "...",
//	  "text":    "...",
//	  "html":    "..."
//	}
type OutboundEmail struct {
	// ID correlates log lines and lets replays be spotted as duplicates.
	ID string `json:"id"`

	To     string `json:"to"`
	ToName string `json:"to_name,omitempty"`

	// ReplyTo directs answers to someone other than the sender.
	ReplyTo string `json:"reply_to,omitempty"`

	Subject string `json:"subject"`

	// Text and HTML are alternative bodies; either may be empty.
	Text string `json:"text,omitempty"`
	HTML string `json:"html,omitempty"`
}
