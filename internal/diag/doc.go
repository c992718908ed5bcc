// Package diag defines the diagnostic model shared by every generation stage.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – Info, Warning or Error (severity.go).
//   - Code – compact numeric identifier with a stable string form (codes.go).
//   - Message – short human oriented text.
//   - Primary – the Loc of the declaration the finding is about.
//   - Notes – optional secondary locations with additional context.
//
// # Emitting diagnostics
//
// Stages report through a Reporter so that emission stays decoupled from
// storage. ReportError / ReportWarning / ReportInfo return a ReportBuilder that
// accepts notes before Emit. BagReporter collects into a Bag, which supports
// sorting, deduplication and merging.
//
// Package diag performs no IO. Rendering lives in internal/report and the CLI.
package diag
