package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	plainTextPolicy = bluemonday.StrictPolicy()
	richTextPolicy  = bluemonday.UGCPolicy()
)

// sanitizePlain strips all markup from short text fields such as titles.
func sanitizePlain(value string) string {
	return strings.TrimSpace(html.UnescapeString(plainTextPolicy.Sanitize(value)))
}

// sanitizeRich keeps safe formatting markup in long-form content.
func sanitizeRich(value string) string {
	return strings.TrimSpace(richTextPolicy.Sanitize(value))
}

// sanitizeRequired cleans a required field supplied on update and rejects it
// when nothing survives the cleaning.
func sanitizeRequired(value string, clean func(string) string, field string) (string, error) {
	cleaned := clean(value)
	if cleaned == "" {
		return "", validationError("%s must not be empty", field)
	}
	return cleaned, nil
}
