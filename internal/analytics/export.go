package analytics

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/classifier"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
)

// RedactedPlaceholder replaces message fields of sensitive records in
// exports unless the caller opts in.
const RedactedPlaceholder = "[SENSITIVE DATA REDACTED]"

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ErrUnsupportedFormat is returned for export formats other than json/csv.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// CSVHeader is the header row of CSV exports.
var CSVHeader = []string{
	"ID", "Timestamp", "Session ID", "Backend", "User Message", "AI Response",
	"Response Time", "Tokens", "Has Error", "Classification",
}

// ExportRequest selects records and output shape. An empty Format means
// json.
type ExportRequest struct {
	Filter           evidence.Filter `json:"filter"`
	Format           string          `json:"format"`
	IncludeSensitive bool            `json:"include_sensitive"`
}

// ExportMetadata heads a JSON export.
type ExportMetadata struct {
	TotalRecords int             `json:"totalRecords"`
	GeneratedAt  time.Time       `json:"generatedAt"`
	Filters      evidence.Filter `json:"filters"`
}

type jsonExport struct {
	Metadata ExportMetadata   `json:"metadata"`
	Records  []EnrichedRecord `json:"records"`
}

// Export writes the records matching req.Filter to w.
func (s *Service) Export(ctx context.Context, w io.Writer, req ExportRequest) error {
	ctx, span := tracer.Start(ctx, "analytics.export")
	defer span.End()

	format := req.Format
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatCSV {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}

	records, err := s.Records(ctx, req.Filter)
	if err != nil {
		return err
	}
	redacted := 0
	if !req.IncludeSensitive {
		for i := range records {
			if redactSensitive(&records[i]) {
				redacted++
			}
		}
	}

	switch format {
	case FormatCSV:
		err = writeCSV(w, records)
	default:
		err = json.NewEncoder(w).Encode(jsonExport{
			Metadata: ExportMetadata{
				TotalRecords: len(records),
				GeneratedAt:  s.now().UTC(),
				Filters:      req.Filter,
			},
			Records: records,
		})
	}
	if err != nil {
		return fmt.Errorf("writing %s export: %w", format, err)
	}
	log.Info().
		Str("format", format).
		Int("records", len(records)).
		Int("redacted", redacted).
		Msg("interactions_exported")
	return nil
}

// redactSensitive blanks the message fields of confidential or sensitive
// records and reports whether it did.
func redactSensitive(r *EnrichedRecord) bool {
	if r.Classification != classifier.TierConfidential && !r.ContainsSensitive {
		return false
	}
	r.UserMessage = RedactedPlaceholder
	r.AIResponse = RedactedPlaceholder
	if r.SystemPrompt != "" {
		r.SystemPrompt = RedactedPlaceholder
	}
	if r.ContextSnapshot != "" {
		r.ContextSnapshot = RedactedPlaceholder
	}
	if r.Reasoning != "" {
		r.Reasoning = RedactedPlaceholder
	}
	r.ReasoningChain = nil
	return true
}

func writeCSV(w io.Writer, records []EnrichedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.ID,
			r.Timestamp.UTC().Format(time.RFC3339),
			r.SessionID,
			r.Backend.Name,
			r.UserMessage,
			r.AIResponse,
			strconv.FormatInt(r.ResponseTimeMs, 10),
			strconv.Itoa(r.TokenCount),
			strconv.FormatBool(r.HasError()),
			string(r.Classification),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
