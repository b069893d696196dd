// Package identity normalizes user-supplied identifiers so that equivalent
// spellings compare equal: emails and phone numbers for account
// deduplication, free-text names for unique category keys and cache keys.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail returns a canonical form of an email address.
//
// For Gmail addresses (@gmail.com and @googlemail.com) the "+suffix" and
// all dots are stripped from the local part and the domain becomes
// gmail.com. Every address is lowercased and trimmed.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}

	local := email[:at]
	domain := email[at+1:]

	if domain == "googlemail.com" {
		domain = "gmail.com"
	}
	if domain == "gmail.com" {
		if plus := strings.Index(local, "+"); plus >= 0 {
			local = local[:plus]
		}
		local = strings.ReplaceAll(local, ".", "")
	}

	return local + "@" + domain
}

// NormalizePhone strips a phone number down to digits. Indian mobile
// numbers written without the country code (10 digits, or 11 with a
// trunk "0") get the "91" prefix.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}

	result := digits.String()
	if len(result) == 11 && result[0] == '0' {
		result = result[1:]
	}
	if len(result) == 10 {
		result = "91" + result
	}
	return result
}

// NormalizePincode removes whitespace from a postal code ("110 001" and
// "110001" are the same pincode).
func NormalizePincode(pincode string) string {
	return strings.Join(strings.Fields(pincode), "")
}

// NormalizeName returns a comparison key for free text: NFKC-folded,
// lowercased, with runs of whitespace collapsed to one space.
// "ＦＯＯＤ", " food " and "Food" share the key "food".
func NormalizeName(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// HashIdentifier returns the hex-encoded SHA-256 hash of the given string.
func HashIdentifier(normalized string) string {
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

// EmailHash normalizes the email and returns its SHA-256 hash.
func EmailHash(email string) string {
	return HashIdentifier(NormalizeEmail(email))
}
