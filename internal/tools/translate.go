package tools

import (
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Translator renders a message key with arguments in the actor's language.
type Translator interface {
	T(key string, args ...any) string
}

// Message keys used by the formatters.
const (
	msgTasksFound        = "tools.tasks_found"
	msgTasksMore         = "tools.tasks_more"
	msgTaskCreated       = "tools.task_created"
	msgTaskUpdated       = "tools.task_updated"
	msgTaskCompleted     = "tools.task_completed"
	msgTaskDeleted       = "tools.task_deleted"
	msgTasksBulkUpdated  = "tools.tasks_bulk_updated"
	msgTimerStarted      = "tools.timer_started"
	msgTimerStartedTask  = "tools.timer_started_task"
	msgTimerStopped      = "tools.timer_stopped"
	msgTimeSummary       = "tools.time_summary"
	msgInsightsScore     = "tools.insights_score"
	msgInsightsNone      = "tools.insights_none"
	msgInsightsTop       = "tools.insights_top"
	msgExecuted          = "tools.executed"
	msgFailed            = "tools.failed"
	msgInvalidResponse   = "tools.invalid_response"
	msgUnknownTool       = "tools.unknown_tool"
	msgInsufficient      = "tools.insufficient_permissions"
	msgConfirmRequired   = "tools.confirmation_required"
	msgConfirmDenied     = "tools.confirmation_denied"
	msgNoHandler         = "tools.no_handler"
	msgUntitledTask      = "tools.untitled_task"
	msgTaskCreatedPlain  = "tools.task_created_plain"
	msgTaskUpdatedPlain  = "tools.task_updated_plain"
	msgTaskDeletedPlain  = "tools.task_deleted_plain"
	msgTaskCompletePlain = "tools.task_completed_plain"
)

// PrinterTranslator is a Translator backed by an x/text message printer.
type PrinterTranslator struct {
	p *message.Printer
}

// NewPrinterTranslator returns a translator for tag over cat.
func NewPrinterTranslator(tag language.Tag, cat catalog.Catalog) *PrinterTranslator {
	return &PrinterTranslator{p: message.NewPrinter(tag, message.Catalog(cat))}
}

// T implements Translator.
func (t *PrinterTranslator) T(key string, args ...any) string {
	return t.p.Sprintf(key, args...)
}

// EnglishCatalog returns the built-in English messages. Other languages can
// be added to the returned builder with Set/SetString.
func EnglishCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	en := language.English

	mustSet(b.Set(en, msgTasksFound, plural.Selectf(1, "%d",
		"=0", "No tasks found",
		"=1", "Found 1 task:",
		plural.Other, "Found %d tasks:")))
	mustSet(b.SetString(en, msgTasksMore, "...and %d more"))
	mustSet(b.SetString(en, msgTaskCreated, "Created task \"%s\""))
	mustSet(b.SetString(en, msgTaskUpdated, "Updated task \"%s\""))
	mustSet(b.SetString(en, msgTaskCompleted, "Completed task \"%s\""))
	mustSet(b.SetString(en, msgTaskDeleted, "Deleted task \"%s\""))
	mustSet(b.SetString(en, msgTaskCreatedPlain, "Task created"))
	mustSet(b.SetString(en, msgTaskUpdatedPlain, "Task updated"))
	mustSet(b.SetString(en, msgTaskCompletePlain, "Task completed"))
	mustSet(b.SetString(en, msgTaskDeletedPlain, "Task deleted"))
	mustSet(b.Set(en, msgTasksBulkUpdated, plural.Selectf(1, "%d",
		"=1", "Updated 1 task",
		plural.Other, "Updated %d tasks")))
	mustSet(b.SetString(en, msgTimerStarted, "Timer started"))
	mustSet(b.SetString(en, msgTimerStartedTask, "Timer started for \"%s\""))
	mustSet(b.Set(en, msgTimerStopped, plural.Selectf(1, "%d",
		"=1", "Timer stopped after 1 minute",
		plural.Other, "Timer stopped after %d minutes")))
	mustSet(b.SetString(en, msgTimeSummary, "Tracked %d min across %d sessions"))
	mustSet(b.SetString(en, msgInsightsScore, "Productivity score: %d/100"))
	mustSet(b.SetString(en, msgInsightsNone, "No recommendations right now"))
	mustSet(b.SetString(en, msgInsightsTop, "Top recommendations:"))
	mustSet(b.SetString(en, msgExecuted, "%s executed successfully"))
	mustSet(b.SetString(en, msgFailed, "%s failed: %s"))
	mustSet(b.SetString(en, msgInvalidResponse, "Received an invalid response from %s"))
	mustSet(b.SetString(en, msgUnknownTool, "unknown tool: %s"))
	mustSet(b.SetString(en, msgInsufficient, "insufficient permissions: missing %s"))
	mustSet(b.SetString(en, msgConfirmRequired, "%s requires confirmation"))
	mustSet(b.SetString(en, msgConfirmDenied, "%s was not confirmed"))
	mustSet(b.SetString(en, msgNoHandler, "%s is not available"))
	mustSet(b.SetString(en, msgUntitledTask, "Untitled task"))
	return b
}

func mustSet(err error) {
	if err != nil {
		panic(err)
	}
}

// DefaultTranslator renders the built-in English catalog.
func DefaultTranslator() Translator {
	return NewPrinterTranslator(language.English, EnglishCatalog())
}
