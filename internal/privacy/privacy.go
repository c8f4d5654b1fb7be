// Package privacy keeps identifying patient data out of prompts and logs.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PatientLabel stands in for the patient's name in generation prompts.
const PatientLabel = "Paciente"

// Pseudonym returns a stable, non-reversible identifier for value. Case and
// surrounding whitespace are ignored so the same address always maps to the
// same pseudonym.
func Pseudonym(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])[:12]
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at+1:]
	return string([]rune(local)[0]) + "***@" + domain
}
