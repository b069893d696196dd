// Package ical renders NGO events as RFC 5545 calendar feeds that
// volunteers can subscribe to.
package ical

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// ContentType is the media type of a rendered feed.
const ContentType = "text/calendar; charset=utf-8"

// DefaultDuration is assumed for events, which only record a start time.
const DefaultDuration = 2 * time.Hour

// Feed describes the VCALENDAR wrapper.
type Feed struct {
	Name        string
	Description string
	Domain      string        // UID suffix, e.g. "kindway.org"
	TTL         time.Duration // suggested refresh interval
}

// Render produces an iCalendar document for events. stamp is used as the
// DTSTAMP of every VEVENT.
func Render(feed Feed, events []models.Event, stamp time.Time) string {
	var b strings.Builder

	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//kindway//events//EN\r\n")
	b.WriteString("METHOD:PUBLISH\r\n")
	b.WriteString("CALSCALE:GREGORIAN\r\n")

	writeProp(&b, "NAME", escapeText(feed.Name))
	writeProp(&b, "X-WR-CALNAME", escapeText(feed.Name))
	if feed.Description != "" {
		writeProp(&b, "DESCRIPTION", escapeText(feed.Description))
		writeProp(&b, "X-WR-CALDESC", escapeText(feed.Description))
	}
	if feed.TTL > 0 {
		d := formatDuration(feed.TTL)
		writeProp(&b, "REFRESH-INTERVAL;VALUE=DURATION", d)
		writeProp(&b, "X-PUBLISHED-TTL", d)
	}

	for _, e := range events {
		writeEvent(&b, feed, e, stamp)
	}

	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func writeEvent(b *strings.Builder, feed Feed, e models.Event, stamp time.Time) {
	uid := e.ID
	if feed.Domain != "" {
		uid += "@" + feed.Domain
	}

	b.WriteString("BEGIN:VEVENT\r\n")
	writeProp(b, "UID", uid)
	writeProp(b, "DTSTAMP", formatDateTime(stamp))
	writeProp(b, "DTSTART", formatDateTime(e.Date))
	writeProp(b, "DTEND", formatDateTime(e.Date.Add(DefaultDuration)))
	writeProp(b, "SUMMARY", escapeText(e.Title))

	desc := e.Description
	if e.NGOName != "" {
		if desc != "" {
			desc += "\n\n"
		}
		desc += "Hosted by " + e.NGOName
	}
	if desc != "" {
		writeProp(b, "DESCRIPTION", escapeText(desc))
	}
	if e.Location != "" {
		writeProp(b, "LOCATION", escapeText(e.Location))
	}
	writeProp(b, "STATUS", "CONFIRMED")
	writeProp(b, "CATEGORIES", "VOLUNTEERING")
	writeProp(b, "CREATED", formatDateTime(e.CreatedAt))
	writeProp(b, "LAST-MODIFIED", formatDateTime(e.UpdatedAt))

	// Reminder the day before.
	b.WriteString("BEGIN:VALARM\r\n")
	writeProp(b, "TRIGGER", "-P1D")
	writeProp(b, "ACTION", "DISPLAY")
	writeProp(b, "DESCRIPTION", "Tomorrow: "+escapeText(e.Title))
	b.WriteString("END:VALARM\r\n")

	b.WriteString("END:VEVENT\r\n")
}

// writeProp writes a content line folded at 75 octets. Folds never split a
// UTF-8 sequence.
func writeProp(b *strings.Builder, name, value string) {
	line := name + ":" + value
	limit := 75
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
		limit = 74 // continuation lines start with a space
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}

func formatDateTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func formatDuration(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("P%dD", int(d/(24*time.Hour)))
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("PT%dH%dM", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("PT%dH", hours)
	}
	return fmt.Sprintf("PT%dM", minutes)
}

// escapeText escapes TEXT values per RFC 5545 section 3.3.11.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\r\n", `\n`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
