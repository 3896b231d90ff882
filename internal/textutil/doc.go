// Package textutil holds small text helpers: filesystem-safe names and slugs
// for library files, and token fingerprints used to spot lyrics that repeat
// earlier songs in a session.
package textutil
