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

// VerifiedSubject is the subject of the NGO verification notice.
const VerifiedSubject = "Congratulations! Your Kindway NGO Profile is Verified!"

const verifiedText = `Dear {{.Name}},

Congratulations! Your NGO profile on Kindway has been reviewed and verified.

You can now receive donation offers from donors, post your needs and host
events for volunteers.

Thank you for the work you do.

The Kindway Team
`

const verifiedHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <h2>Congratulations, {{.Name}}!</h2>
  <p>Your NGO profile on <strong>Kindway</strong> has been reviewed and verified.</p>
  <p>You can now receive donation offers from donors, post your needs and host events for volunteers.</p>
  <p>Thank you for the work you do.</p>
  <p>The Kindway Team</p>
</body>
</html>
`

var (
	verifiedTextTmpl = texttemplate.Must(texttemplate.New("verified.txt").Parse(verifiedText))
	verifiedHTMLTmpl = htmltemplate.Must(htmltemplate.New("verified.html").Parse(verifiedHTML))
)

// VerifiedEmail builds the notice sent once to an NGO after admin
// verification.
func VerifiedEmail(to, ngoName string) (OutboundEmail, error) {
	data := struct{ Name string }{Name: strings.TrimSpace(ngoName)}
	if data.Name == "" {
		data.Name = "friend"
	}

	var text, html bytes.Buffer
	if err := verifiedTextTmpl.Execute(&text, data); err != nil {
		return OutboundEmail{}, err
	}
	if err := verifiedHTMLTmpl.Execute(&html, data); err != nil {
		return OutboundEmail{}, err
	}

	return OutboundEmail{
		ID:      uuid.New().String(),
		To:      to,
		ToName:  data.Name,
		Subject: VerifiedSubject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
