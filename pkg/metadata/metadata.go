// Package metadata provides structured parsing and validation for interview metadata JSON.
// Interview metadata supports flexible HR context like department, locale, tags, notes, etc.
package metadata

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InterviewMetadata defines the standard structure for interview metadata JSON.
// This struct provides type-safe access to metadata fields stored as JSON in the database.
type InterviewMetadata struct {
	Department   string   `json:"department,omitempty"`    // Department of the departing employee
	Team         string   `json:"team,omitempty"`          // Team within the department
	ManagerEmail string   `json:"manager_email,omitempty"` // Manager to notify when the summary is ready
	Locale       string   `json:"locale,omitempty"`        // Interview language (e.g., en, zh-CN)
	Tags         []string `json:"tags,omitempty"`          // Tags for filtering (e.g., ["voluntary", "remote"])
	Notes        string   `json:"notes,omitempty"`         // HR notes (max 500 chars)
}

// Parse parses JSON string into InterviewMetadata struct.
// Empty string returns empty metadata; invalid JSON returns an error.
func Parse(jsonStr string) (*InterviewMetadata, error) {
	if jsonStr == "" {
		return &InterviewMetadata{}, nil
	}

	var meta InterviewMetadata
	if err := json.Unmarshal([]byte(jsonStr), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata JSON: %w", err)
	}

	return &meta, nil
}

// String serializes InterviewMetadata to JSON string.
// Returns empty string if metadata is empty (all zero values).
func (m *InterviewMetadata) String() string {
	if m.IsEmpty() {
		return ""
	}

	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}

	return string(data)
}

// IsEmpty checks if metadata has any non-zero values.
func (m *InterviewMetadata) IsEmpty() bool {
	return m.Department == "" &&
		m.Team == "" &&
		m.ManagerEmail == "" &&
		m.Locale == "" &&
		len(m.Tags) == 0 &&
		m.Notes == ""
}

// Validate validates metadata fields and returns error if invalid.
// Validation rules:
// - manager_email: must look like an address (user@domain) if provided
// - locale: "xx" or "xx-XX" form if provided
// - tags: max 10 tags, each tag max 50 characters, none empty
// - notes: max 500 characters
func (m *InterviewMetadata) Validate() error {
	if m.ManagerEmail != "" {
		at := strings.IndexByte(m.ManagerEmail, '@')
		if at <= 0 || at == len(m.ManagerEmail)-1 {
			return fmt.Errorf("invalid manager_email: %q", m.ManagerEmail)
		}
	}

	if m.Locale != "" {
		if err := validateLocale(m.Locale); err != nil {
			return fmt.Errorf("invalid locale: %w", err)
		}
	}

	if len(m.Tags) > 10 {
		return fmt.Errorf("too many tags: max 10 allowed, got %d", len(m.Tags))
	}
	for i, tag := range m.Tags {
		if len(tag) > 50 {
			return fmt.Errorf("tag[%d] too long: max 50 characters, got %d", i, len(tag))
		}
		if tag == "" {
			return fmt.Errorf("tag[%d] is empty", i)
		}
	}

	if len(m.Notes) > 500 {
		return fmt.Errorf("notes too long: max 500 characters, got %d", len(m.Notes))
	}

	return nil
}

// MaskSensitive returns a copy of metadata with sensitive fields masked.
// Specifically, masks the local part of manager_email (e.g., "joh***@corp.com").
// This should be called before returning metadata to API clients.
func (m *InterviewMetadata) MaskSensitive() *InterviewMetadata {
	masked := *m // Copy struct

	if masked.ManagerEmail != "" {
		masked.ManagerEmail = maskEmail(masked.ManagerEmail)
	}

	return &masked
}

// validateLocale accepts "xx" or "xx-XX" language tags.
func validateLocale(locale string) error {
	parts := strings.SplitN(locale, "-", 2)

	lang := parts[0]
	if len(lang) != 2 || lang != strings.ToLower(lang) {
		return fmt.Errorf("unsupported locale form: %s (expected xx or xx-XX)", locale)
	}

	if len(parts) == 2 {
		region := parts[1]
		if len(region) != 2 || region != strings.ToUpper(region) {
			return fmt.Errorf("unsupported locale form: %s (expected xx or xx-XX)", locale)
		}
	}

	return nil
}

// maskEmail masks the local part of an email address.
// Example: "john.doe@corp.com" -> "joh***@corp.com"
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return email // Not an address, return as-is
	}

	local := email[:at]
	if len(local) <= 3 {
		return strings.Repeat("*", len(local)) + email[at:]
	}
	return local[:3] + "***" + email[at:]
}
