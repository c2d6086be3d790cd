package classifier

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	scanner := MustNewScanner()
	ctx := context.Background()

	tests := []struct {
		name      string
		text      string
		wantTier  Tier
		wantTypes []string
	}{
		{name: "plain text", text: "What is the weather today? thanks", wantTier: TierPublic},
		{name: "email and phone", text: "Contact me at a@b.com or call 555-123-4567", wantTier: TierInternal, wantTypes: []string{"email", "phone"}},
		{name: "password assignment", text: "password: s3cr3t123", wantTier: TierConfidential, wantTypes: []string{"password"}},
		{name: "credit card", text: "Card: 4111 1111 1111 1111", wantTier: TierConfidential, wantTypes: []string{"credit_card"}},
		{name: "ssn", text: "SSN: 123-45-6789", wantTier: TierConfidential, wantTypes: []string{"ssn"}},
		{name: "bearer token", text: "Authorization: Bearer abc.def-123456", wantTier: TierConfidential, wantTypes: []string{"token"}},
		{name: "api key", text: "use sk-abcdefghijklmnop1234 for the call", wantTier: TierConfidential, wantTypes: []string{"api_key"}},
		{name: "connection string", text: "connect to mongodb://localhost:27017/tasks", wantTier: TierConfidential, wantTypes: []string{"connection_string"}},
		{name: "ip address", text: "server at 192.168.1.10 is down", wantTier: TierInternal, wantTypes: []string{"ip_address"}},
		{name: "home path", text: "open /home/alice/notes.txt please", wantTier: TierInternal, wantTypes: []string{"file_path"}},
		{name: "keyword only", text: "This document is confidential", wantTier: TierInternal, wantTypes: []string{KeywordType}},
		{name: "confidential keywords", text: "salary and medical diagnosis details", wantTier: TierConfidential},
		{name: "internal majority", text: "Team meeting about the project deadline", wantTier: TierInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := scanner.Analyze(ctx, tt.text)
			assert.Equal(t, tt.wantTier, a.Tier)
			if len(tt.wantTypes) == 0 {
				assert.Empty(t, a.Matches)
				return
			}
			assert.Equal(t, tt.wantTypes, a.Types())
		})
	}
}

func TestAnalyze_Empty(t *testing.T) {
	a := MustNewScanner().Analyze(context.Background(), "")
	assert.Empty(t, a.Matches)
	assert.Equal(t, TierPublic, a.Tier)
	assert.Zero(t, a.Confidence)
	assert.False(t, a.Sensitive)
}

func TestAnalyze_InvalidLuhnIsNotACard(t *testing.T) {
	a := MustNewScanner().Analyze(context.Background(), "Card: 4111 1111 1111 1112")
	assert.NotContains(t, a.Types(), "credit_card")
}

func TestAnalyze_KeywordPassSkippedOnHighConfidence(t *testing.T) {
	a := MustNewScanner().Analyze(context.Background(), "confidential: password: hunter22")
	for _, m := range a.Matches {
		assert.NotEqual(t, KeywordType, m.Type)
	}
}

func TestAnalyze_Confidence(t *testing.T) {
	a := MustNewScanner().Analyze(context.Background(), "password: s3cr3t123")
	require.Len(t, a.Matches, 1)
	// density capped at 1 for a 19-char string with one match
	assert.InDelta(t, 0.8*0.9+0.2, a.Confidence, 1e-9)
}

func TestAnalyze_SensitiveFlag(t *testing.T) {
	scanner := MustNewScanner()
	ctx := context.Background()

	assert.True(t, scanner.Analyze(ctx, "mail a@b.com").Sensitive)
	assert.False(t, scanner.Analyze(ctx, "This document is confidential").Sensitive, "keyword hits alone are not sensitive")
	assert.True(t, scanner.Analyze(ctx, "salary and medical diagnosis details").Sensitive)
}

func TestRedact(t *testing.T) {
	scanner := MustNewScanner()
	ctx := context.Background()

	assert.Equal(t,
		"Contact me at [EMAIL_REDACTED] or call [PHONE_REDACTED]",
		scanner.Redact(ctx, "Contact me at a@b.com or call 555-123-4567"))
	assert.Equal(t, "[PASSWORD_REDACTED]", scanner.Redact(ctx, "password: s3cr3t123"))
	assert.Equal(t, "Card: [CREDIT_CARD_REDACTED]", scanner.Redact(ctx, "Card: 4111 1111 1111 1111"))
	assert.Equal(t, "Hello world", scanner.Redact(ctx, "Hello world"))
	assert.Equal(t, "This document is confidential", scanner.Redact(ctx, "This document is confidential"),
		"keyword hits are not redacted")
}

func TestRedact_ReplacesEveryReportedSpan(t *testing.T) {
	scanner := MustNewScanner()
	ctx := context.Background()

	texts := []string{
		"Contact me at a@b.com or call 555-123-4567",
		"SSN 123-45-6789 and card 4111111111111111",
		"token Bearer abcdef123456 from 10.0.0.1",
		"api_key=ABCDEF1234567890 stored in /Users/bob/keys.txt",
	}
	for _, text := range texts {
		a := scanner.Analyze(ctx, text)
		redacted := scanner.Redact(ctx, text)
		for _, m := range a.Matches {
			if m.IsKeyword() {
				continue
			}
			assert.NotContains(t, redacted, m.Value, "span %q of type %s left in %q", m.Value, m.Type, redacted)
		}
	}
}

func TestRedact_Idempotent(t *testing.T) {
	scanner := MustNewScanner()
	ctx := context.Background()

	texts := []string{
		"Contact me at a@b.com or call 555-123-4567",
		"password: s3cr3t123",
		"Authorization: Bearer abc.def-123456",
		"SSN 123-45-6789, card 4111 1111 1111 1111, key sk-abcdefghijklmnop1234",
		"db at postgresql://db.internal/app and host 192.168.0.4",
		"notes in /home/alice/todo.md",
		"db postgres://admin:pw@db.internal:5432/app",
	}
	for _, text := range texts {
		once := scanner.Redact(ctx, text)
		assert.Equal(t, once, scanner.Redact(ctx, once), "redact not idempotent for %q", text)
	}
}

func TestAnalyze_ConnectionStringWithCredentials(t *testing.T) {
	scanner := MustNewScanner()
	ctx := context.Background()

	tests := []struct {
		text string
		want string
	}{
		{"db postgres://admin:pw@db.internal:5432/app", "db [CONNECTION_STRING_REDACTED]"},
		{"mongodb://admin@cluster.example.com/prod now", "[CONNECTION_STRING_REDACTED] now"},
	}
	for _, tt := range tests {
		a := scanner.Analyze(ctx, tt.text)
		require.Len(t, a.Matches, 1, tt.text)
		assert.Equal(t, "connection_string", a.Matches[0].Recognizer)
		assert.Equal(t, TierConfidential, a.Tier)
		assert.Equal(t, tt.want, scanner.Redact(ctx, tt.text))
	}

	a := scanner.Analyze(ctx, "write to ops@example.com")
	require.Len(t, a.Matches, 1)
	assert.Equal(t, "email", a.Matches[0].Recognizer, "plain emails stay emails")
}

func TestRedact_PasswordStopsAtDelimiters(t *testing.T) {
	scanner := MustNewScanner()
	ctx := context.Background()
	assert.Equal(t, `{"title":"[PASSWORD_REDACTED]"}`, scanner.Redact(ctx, `{"title":"password: hunter2secret"}`))
	assert.Equal(t, "[PASSWORD_REDACTED], then log in", scanner.Redact(ctx, "pwd=hunter2, then log in"))
}

func TestRedactWith_NilAnalysis(t *testing.T) {
	assert.Equal(t, "unchanged", RedactWith("unchanged", nil))
}

func TestAnonymize(t *testing.T) {
	scanner := MustNewScanner()
	out := scanner.Anonymize(context.Background(), "Meeting with John Smith on 2024-03-15, email john@x.io")
	assert.Equal(t, "Meeting with [NAME] on [DATE], email [EMAIL_REDACTED]", out)
}

func TestCustomRecognizer(t *testing.T) {
	scanner, err := NewScanner(WithCustomRecognizers([]RecognizerConfig{{
		Name:            "employee_id",
		SupportedEntity: "EMPLOYEE_ID",
		Patterns:        []PatternConfig{{Name: "emp", Regex: `\bEMP-\d{6}\b`, Score: 0.85}},
	}}))
	require.NoError(t, err)
	ctx := context.Background()

	a := scanner.Analyze(ctx, "Badge EMP-123456")
	assert.Equal(t, []string{"employee_id"}, a.Types())
	assert.Equal(t, TierConfidential, a.Tier)
	assert.Equal(t, "Badge [EMPLOYEE_ID_REDACTED]", scanner.Redact(ctx, "Badge EMP-123456"))
}

func TestDisabledEntities(t *testing.T) {
	scanner, err := NewScanner(WithDisabledEntities([]string{"EMAIL"}))
	require.NoError(t, err)
	a := scanner.Analyze(context.Background(), "a@b.com")
	assert.Empty(t, a.Matches)
}

func TestEnabledEntities(t *testing.T) {
	scanner, err := NewScanner(WithEnabledEntities([]string{"PHONE"}))
	require.NoError(t, err)
	a := scanner.Analyze(context.Background(), "a@b.com 555-123-4567")
	assert.Equal(t, []string{"phone"}, a.Types())
}

func TestPatternFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	yaml := `
recognizers:
  - name: email
    supported_entity: EMAIL
    placeholder: "<mail>"
    patterns:
      - name: email_address
        regex: '\b[a-z]+@[a-z]+\.[a-z]{2,}\b'
        score: 0.8
keywords:
  sensitive:
    - restricted
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	scanner, err := NewScanner(WithPatternFile(path))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, "write <mail>", scanner.Redact(ctx, "write bob@mail.com"))
	a := scanner.Analyze(ctx, "restricted material")
	assert.Equal(t, []string{KeywordType}, a.Types())
}

func TestPatternFile_Missing(t *testing.T) {
	_, err := NewScanner(WithPatternFile(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.NoError(t, err)
}

func TestCompilePatterns_Errors(t *testing.T) {
	_, err := CompilePatterns([]RecognizerConfig{{
		Name: "bad", SupportedEntity: "BAD",
		Patterns: []PatternConfig{{Name: "p", Regex: `([`, Score: 0.5}},
	}})
	assert.Error(t, err)

	_, err = CompilePatterns([]RecognizerConfig{{
		Name: "odd", SupportedEntity: "ODD", Validate: "mod97",
		Patterns: []PatternConfig{{Name: "p", Regex: `x`, Score: 0.5}},
	}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported validation"))
}

func TestMergeRecognizers_OverrideKeepsPosition(t *testing.T) {
	base := []RecognizerConfig{{Name: "a"}, {Name: "b"}}
	override := []RecognizerConfig{{Name: "a", SupportedEntity: "X"}, {Name: "c"}}
	merged := MergeRecognizers(toPtrSlice(base), toPtrSlice(override))
	require.Len(t, merged, 3)
	assert.Equal(t, "a", merged[0].Name)
	assert.Equal(t, "X", merged[0].SupportedEntity)
	assert.Equal(t, "c", merged[2].Name)
}

func TestTier(t *testing.T) {
	assert.Equal(t, TierConfidential, MaxTier(TierPublic, TierConfidential, TierInternal))
	assert.Equal(t, TierPublic, MaxTier())
	assert.Equal(t, TierPublic, ParseTier(""))
	assert.Equal(t, TierInternal, ParseTier("internal"))
	assert.Equal(t, TierConfidential, ParseTier("garbage"))
	assert.True(t, TierInternal.AtLeast(TierPublic))
	assert.False(t, TierInternal.AtLeast(TierConfidential))
}
