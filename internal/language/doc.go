// Package language normalizes the free-form lyrics language a session asks
// for ("english", "EN", "fra", "pt-BR", "español") into a BCP 47 tag and an
// English display name for prompts.
package language
