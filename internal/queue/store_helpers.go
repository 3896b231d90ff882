package queue

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const songColumns = "id, session_id, order_index, status, title, artist, genre, subgenre, lyrics, caption, cover_prompt, cover_url, bpm, key_scale, time_signature, audio_duration, ace_task_id, audio_url, storage_path, error_message, retry_count, errored_at_status, is_interrupt, interrupt_prompt, prompt_epoch, cover_claimed_at, cover_error, generation_started_at, generation_completed_at, status_changed_at, created_at, updated_at"

const sessionColumns = "id, prompt, llm_provider, llm_model, bpm, key_scale, time_signature, audio_duration, lyrics_language, infer_steps, mode, status, songs_generated, prompt_epoch, created_at, updated_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanSong(scanner rowScanner) (*Song, error) {
	var (
		song            Song
		statusStr       string
		title           sql.NullString
		artist          sql.NullString
		genre           sql.NullString
		subgenre        sql.NullString
		lyrics          sql.NullString
		caption         sql.NullString
		coverPrompt     sql.NullString
		coverURL        sql.NullString
		bpm             sql.NullInt64
		keyScale        sql.NullString
		timeSignature   sql.NullString
		audioDuration   sql.NullInt64
		aceTaskID       sql.NullString
		audioURL        sql.NullString
		storagePath     sql.NullString
		errorMessage    sql.NullString
		erroredAt       sql.NullString
		isInterrupt     int64
		interruptPrompt sql.NullString
		coverClaimedRaw sql.NullString
		coverError      sql.NullString
		startedRaw      sql.NullString
		completedRaw    sql.NullString
		statusChanged   string
		createdRaw      string
		updatedRaw      string
	)

	if err := scanner.Scan(
		&song.ID,
		&song.SessionID,
		&song.OrderIndex,
		&statusStr,
		&title,
		&artist,
		&genre,
		&subgenre,
		&lyrics,
		&caption,
		&coverPrompt,
		&coverURL,
		&bpm,
		&keyScale,
		&timeSignature,
		&audioDuration,
		&aceTaskID,
		&audioURL,
		&storagePath,
		&errorMessage,
		&song.RetryCount,
		&erroredAt,
		&isInterrupt,
		&interruptPrompt,
		&song.PromptEpoch,
		&coverClaimedRaw,
		&coverError,
		&startedRaw,
		&completedRaw,
		&statusChanged,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	song.Status = Status(statusStr)
	song.Title = title.String
	song.Artist = artist.String
	song.Genre = genre.String
	song.Subgenre = subgenre.String
	song.Lyrics = lyrics.String
	song.Caption = caption.String
	song.CoverPrompt = coverPrompt.String
	song.CoverURL = coverURL.String
	song.BPM = int(bpm.Int64)
	song.KeyScale = keyScale.String
	song.TimeSignature = timeSignature.String
	song.AudioDuration = int(audioDuration.Int64)
	song.ACETaskID = aceTaskID.String
	song.AudioURL = audioURL.String
	song.StoragePath = storagePath.String
	song.ErrorMessage = errorMessage.String
	song.ErroredAtStatus = Status(erroredAt.String)
	song.IsInterrupt = isInterrupt != 0
	song.InterruptPrompt = interruptPrompt.String
	song.CoverError = coverError.String
	song.CoverClaimedAt = parseNullableTime(coverClaimedRaw)
	song.GenerationStartedAt = parseNullableTime(startedRaw)
	song.GenerationCompletedAt = parseNullableTime(completedRaw)
	if t, err := parseTimeString(statusChanged); err == nil {
		song.StatusChangedAt = t
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		song.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		song.UpdatedAt = t
	}
	return &song, nil
}

func scanSession(scanner rowScanner) (*Session, error) {
	var (
		session        Session
		llmProvider    sql.NullString
		llmModel       sql.NullString
		bpm            sql.NullInt64
		keyScale       sql.NullString
		timeSignature  sql.NullString
		audioDuration  sql.NullInt64
		lyricsLanguage sql.NullString
		inferSteps     sql.NullInt64
		mode           string
		status         string
		createdRaw     string
		updatedRaw     string
	)
	if err := scanner.Scan(
		&session.ID,
		&session.Prompt,
		&llmProvider,
		&llmModel,
		&bpm,
		&keyScale,
		&timeSignature,
		&audioDuration,
		&lyricsLanguage,
		&inferSteps,
		&mode,
		&status,
		&session.SongsGenerated,
		&session.PromptEpoch,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	session.LLMProvider = llmProvider.String
	session.LLMModel = llmModel.String
	session.Params = GenerationParams{
		BPM:                  int(bpm.Int64),
		KeyScale:             keyScale.String,
		TimeSignature:        timeSignature.String,
		AudioDurationSeconds: int(audioDuration.Int64),
		LyricsLanguage:       lyricsLanguage.String,
		InferSteps:           int(inferSteps.Int64),
	}
	session.Mode = Mode(mode)
	session.Status = SessionStatus(status)
	if t, err := parseTimeString(createdRaw); err == nil {
		session.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		session.UpdatedAt = t
	}
	return &session, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses ...Status) []any {
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return args
}
