// Package preflight provides readiness checks for the directories, binaries
// and provider endpoints songflow depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll once at startup and logs every failure. A
//     failed check never stops the daemon; the affected songs fail through
//     the normal error path instead.
//   - The CLI "songflow status" command renders the same results as a table.
//
// Provider checks are skipped when the provider is not configured.
package preflight
