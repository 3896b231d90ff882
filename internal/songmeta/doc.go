// Package songmeta turns a steering prompt into a complete song metadata set
// using the session's text provider.
//
// Generate builds the system and user prompts, asks the provider for a JSON
// object, and finalizes the result: session parameters win over the model's
// choices, missing values fall back to defaults (120 BPM, "C major", "4/4",
// 180 seconds), and numbers are clamped to ranges the audio service accepts.
//
// When the new lyrics closely repeat one of the session's recent songs the
// generator asks once more with an explicit instruction to diverge.
package songmeta
