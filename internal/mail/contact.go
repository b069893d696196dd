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
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/google/uuid"
)

const contactText = `You received a new message from {{.Name}} ({{.Email}}):

{{.Message}}
`

const contactHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <p>You received a new message from <strong>{{.Name}}</strong> ({{.Email}}):</p>
  <p style="white-space: pre-wrap;">{{.Message}}</p>
</body>
</html>
`

var (
	contactTextTmpl = texttemplate.Must(texttemplate.New("contact.txt").Parse(contactText))
	contactHTMLTmpl = htmltemplate.Must(htmltemplate.New("contact.html").Parse(contactHTML))
)

// ContactEmail forwards a contact form submission to the site inbox. Replies
// go to the visitor.
func ContactEmail(to, name, fromEmail, message string) (OutboundEmail, error) {
	data := struct{ Name, Email, Message string }{
		Name:    strings.TrimSpace(name),
		Email:   strings.TrimSpace(fromEmail),
		Message: message,
	}

	var text, html bytes.Buffer
	if err := contactTextTmpl.Execute(&text, data); err != nil {
		return OutboundEmail{}, err
	}
	if err := contactHTMLTmpl.Execute(&html, data); err != nil {
		return OutboundEmail{}, err
	}

	return OutboundEmail{
		ID:      uuid.New().String(),
		To:      to,
		ReplyTo: data.Email,
		Subject: "Contact Form Submission from " + data.Name,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
