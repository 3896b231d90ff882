package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"songflow/internal/config"
	"songflow/internal/fileutil"
	"songflow/internal/logging"
	"songflow/internal/queue"
	"songflow/internal/services"
	"songflow/internal/textutil"
)

// MediaPrefix is the URL path under which library files are served.
const MediaPrefix = "/media/"

const stageName = "save"

// Library writes finished songs below a root directory.
type Library struct {
	root    string
	baseURL string
	audio   config.Audio
	logger  *slog.Logger
	run     commandRunner
	resolve func(string) (string, error)
}

// Option customizes a Library.
type Option func(*Library)

// WithCommandRunner replaces the ffmpeg runner (primarily for tests).
func WithCommandRunner(r commandRunner) Option {
	return func(l *Library) {
		if r != nil {
			l.run = r
		}
	}
}

// WithFFmpegResolver replaces ffmpeg lookup (primarily for tests).
func WithFFmpegResolver(fn func(string) (string, error)) Option {
	return func(l *Library) {
		if fn != nil {
			l.resolve = fn
		}
	}
}

// New builds a Library rooted at cfg.Paths.LibraryDir.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Library {
	l := &Library{
		root:    cfg.Paths.LibraryDir,
		baseURL: cfg.MediaBaseURL(),
		audio:   cfg.Audio,
		logger:  logging.NewComponentLogger(logger, "library"),
		run:     defaultCommandRunner,
		resolve: defaultFFmpegResolver,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Root returns the library directory.
func (l *Library) Root() string {
	return l.root
}

// BaseName returns the file stem shared by a song's audio, cover and sidecar.
func BaseName(song *queue.Song) string {
	id := song.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%07.2f-%s-%s", song.OrderIndex, textutil.Slug(song.Title, "untitled"), id)
}

func (l *Library) songPath(song *queue.Song, suffix string) string {
	return filepath.Join(l.root, textutil.SanitizeFileName(song.SessionID), BaseName(song)+suffix)
}

// URL returns the public link for a file inside the library.
func (l *Library) URL(absPath string) (string, error) {
	rel, err := filepath.Rel(l.root, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the library", absPath)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return l.baseURL + MediaPrefix + strings.Join(parts, "/"), nil
}

// Open resolves a media path (relative to the library root, slash separated)
// to a file on disk. Paths escaping the root are rejected.
func (l *Library) Open(rel string) (*os.File, error) {
	clean := path.Clean("/" + rel)
	if clean == "/" {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(l.root, filepath.FromSlash(clean)))
}

// SaveAudio writes body as the song's audio file, trims silence when
// enabled, and returns the storage path and public url.
func (l *Library) SaveAudio(ctx context.Context, song *queue.Song, body io.Reader, format string) (queue.SaveResult, error) {
	if song == nil {
		return queue.SaveResult{}, services.Wrap(services.ErrValidation, stageName, "save audio", "song is nil", nil)
	}
	format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	if format == "" {
		format = "mp3"
	}
	dest := l.songPath(song, "."+format)
	written, err := fileutil.WriteAtomic(dest, body, 0o644)
	if err != nil {
		return queue.SaveResult{}, services.Wrap(services.ErrTransient, stageName, "write audio", "", err)
	}
	if written == 0 {
		_ = os.Remove(dest)
		return queue.SaveResult{}, services.Wrap(services.ErrValidation, stageName, "write audio", "audio download was empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return queue.SaveResult{}, err
	}

	if l.audio.TrimSilence {
		if err := l.trimSilence(ctx, dest); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return queue.SaveResult{}, ctxErr
			}
			logging.WarnWithContext(logging.WithContext(ctx, l.logger), "silence trim failed; keeping untrimmed audio", "library.trim_failed",
				logging.String("path", dest),
				logging.Error(err),
				logging.String(logging.FieldImpact, "song keeps leading or trailing silence"),
			)
		}
	}

	link, err := l.URL(dest)
	if err != nil {
		return queue.SaveResult{}, services.Wrap(services.ErrConfiguration, stageName, "build audio url", "", err)
	}
	return queue.SaveResult{AudioURL: link, StoragePath: dest}, nil
}

// SaveCover writes cover art next to the song's audio and returns its url.
func (l *Library) SaveCover(song *queue.Song, data []byte, ext string) (string, error) {
	if song == nil {
		return "", services.Wrap(services.ErrValidation, "cover", "save cover", "song is nil", nil)
	}
	if len(data) == 0 {
		return "", services.Wrap(services.ErrValidation, "cover", "save cover", "image is empty", nil)
	}
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = "png"
	}
	dest := l.songPath(song, "-cover."+ext)
	if _, err := fileutil.WriteAtomic(dest, bytes.NewReader(data), 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "cover", "write cover", "", err)
	}
	return l.URL(dest)
}

// Remove deletes every file belonging to song. Missing files are ignored.
func (l *Library) Remove(song *queue.Song) error {
	matches, err := filepath.Glob(filepath.Join(l.root, textutil.SanitizeFileName(song.SessionID), globEscape(BaseName(song))+"*"))
	if err != nil {
		return err
	}
	var errs []error
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
