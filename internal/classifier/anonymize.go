package classifier

import (
	"context"
	"regexp"
)

var (
	anonEmailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	anonPhoneRe = regexp.MustCompile(`(?:\+?\d{1,3}[-.\s]?)?(?:\(\d{3}\)|\b\d{3})[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	anonDateRe  = regexp.MustCompile(`\b(?:\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|\d{1,2}\.\d{1,2}\.\d{4})\b`)
	anonNameRe  = regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)
)

// Anonymize redacts text and then blanks likely identifying tokens: two-word
// capitalized sequences (names), emails, dates and phone numbers. It is
// lossy and best-effort; it does not guarantee removal.
func (s *Scanner) Anonymize(ctx context.Context, text string) string {
	ctx, span := tracer.Start(ctx, "classifier.anonymize")
	defer span.End()

	out := s.Redact(ctx, text)
	out = anonEmailRe.ReplaceAllString(out, "[EMAIL]")
	out = anonDateRe.ReplaceAllString(out, "[DATE]")
	out = anonPhoneRe.ReplaceAllString(out, "[PHONE]")
	out = anonNameRe.ReplaceAllString(out, "[NAME]")
	return out
}
