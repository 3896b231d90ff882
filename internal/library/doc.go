// Package library owns the on-disk song library: finished audio, cover art
// and JSON sidecars laid out per session under the configured library
// directory.
//
// Files are named by play order so a plain directory listing reflects the
// session:
//
//	<library_dir>/<session_id>/<order>-<slug>-<id8>.<ext>
//	<library_dir>/<session_id>/<order>-<slug>-<id8>-cover.<ext>
//	<library_dir>/<session_id>/<order>-<slug>-<id8>.json
//
// Every write goes through fileutil.WriteAtomic. When audio.trim_silence is
// enabled, SaveAudio runs ffmpeg's silenceremove filter over both ends of the
// track; a failed trim keeps the untrimmed file and logs a warning.
package library
