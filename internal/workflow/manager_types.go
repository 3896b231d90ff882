package workflow

import (
	"context"
	"io"
	"time"

	"songflow/internal/queue"
	"songflow/internal/services/ace"
	"songflow/internal/services/imagegen"
	"songflow/internal/songmeta"
)

// TextProvider writes song metadata.
type TextProvider interface {
	Generate(ctx context.Context, req songmeta.Request) (queue.SongMetadata, error)
}

// ImageProvider renders cover art.
type ImageProvider interface {
	Generate(ctx context.Context, req imagegen.Request) (imagegen.Image, error)
}

// AudioProvider synthesizes audio as asynchronous tasks.
type AudioProvider interface {
	Submit(ctx context.Context, p ace.Params) (string, error)
	Poll(ctx context.Context, taskID string) (ace.PollResult, error)
	Fetch(ctx context.Context, ref string) (io.ReadCloser, string, error)
	Format() string
}

// SongLibrary persists finished songs and their assets.
type SongLibrary interface {
	SaveAudio(ctx context.Context, song *queue.Song, body io.Reader, format string) (queue.SaveResult, error)
	SaveCover(song *queue.Song, data []byte, ext string) (string, error)
	WriteSidecar(song *queue.Song, result queue.SaveResult, savedAt time.Time) (string, error)
	Remove(song *queue.Song) error
}

// ProviderSet bundles the collaborators the stage processors call.
type ProviderSet struct {
	Text    TextProvider
	Image   ImageProvider
	Audio   AudioProvider
	Library SongLibrary
}

func (p ProviderSet) complete() bool {
	return p.Text != nil && p.Image != nil && p.Audio != nil && p.Library != nil
}
