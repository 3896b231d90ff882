// Package logs reads the daemon's log files for the CLI.
//
// Each daemon run writes songflow-<run>.log and repoints songflow.log at it.
// Last returns the final lines of a file with bounded memory; Follow polls
// for appended lines and reopens the pointer when a new run replaces it.
package logs
