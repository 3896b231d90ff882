package queue

import (
	"math"
	"sort"
	"strings"
	"time"
)

// RecentLimit bounds WorkQueue.Recent.
const RecentLimit = 5

// BuildWorkQueue categorizes songs for one session. Songs in a transient
// status whose StatusChangedAt is before staleCutoff are reported in Stale;
// a zero cutoff disables stale detection.
func BuildWorkQueue(sessionID string, songs []*Song, staleCutoff time.Time) *WorkQueue {
	ordered := make([]*Song, len(songs))
	copy(ordered, songs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})

	wq := &WorkQueue{SessionID: sessionID, TotalSongs: len(ordered)}
	for i, song := range ordered {
		if i == 0 || song.OrderIndex > wq.MaxOrderIndex {
			wq.MaxOrderIndex = song.OrderIndex
		}
		if IsTransient(song.Status) {
			wq.TransientCount++
			if !staleCutoff.IsZero() && song.StatusChangedAt.Before(staleCutoff) {
				wq.Stale = append(wq.Stale, song)
			}
		}
		switch song.Status {
		case StatusPending:
			wq.Pending = append(wq.Pending, song)
		case StatusGeneratingMetadata:
			wq.MetadataInFlight++
		case StatusMetadataReady:
			wq.MetadataReady = append(wq.MetadataReady, song)
		case StatusSubmittingToACE:
			wq.ActiveAudioCount++
		case StatusGeneratingAudio:
			wq.ActiveAudioCount++
			wq.GeneratingAudio = append(wq.GeneratingAudio, song)
		case StatusRetryPending:
			wq.RetryPending = append(wq.RetryPending, song)
		}
		switch song.Status {
		case StatusPlayed, StatusError:
		default:
			wq.BufferedCount++
		}
		switch song.Status {
		case StatusReady, StatusPlayed, StatusError:
		default:
			wq.UnfinishedCount++
		}
		if song.NeedsCover() {
			wq.NeedsCover = append(wq.NeedsCover, song)
		}
		if strings.TrimSpace(song.Title) != "" {
			wq.Recent = append(wq.Recent, song)
		}
	}
	if len(wq.Recent) > RecentLimit {
		wq.Recent = wq.Recent[len(wq.Recent)-RecentLimit:]
	}
	return wq
}

// NextOrderIndex returns the position for a new song appended to the end of
// the session: one past the ceiling of the current maximum.
func (wq *WorkQueue) NextOrderIndex() float64 {
	if wq == nil || wq.TotalSongs == 0 {
		return 1
	}
	return math.Ceil(wq.MaxOrderIndex) + 1
}

// Deficit returns how many songs are missing from the buffer target.
func (wq *WorkQueue) Deficit(target int) int {
	if wq == nil {
		return target
	}
	if d := target - wq.BufferedCount; d > 0 {
		return d
	}
	return 0
}

// WithoutSongs returns a copy of wq with the given song IDs removed from the
// processor lists. Counters are left as they were.
func (wq *WorkQueue) WithoutSongs(ids map[string]struct{}) *WorkQueue {
	if wq == nil || len(ids) == 0 {
		return wq
	}
	filter := func(in []*Song) []*Song {
		var out []*Song
		for _, s := range in {
			if _, drop := ids[s.ID]; !drop {
				out = append(out, s)
			}
		}
		return out
	}
	cp := *wq
	cp.Pending = filter(wq.Pending)
	cp.MetadataReady = filter(wq.MetadataReady)
	cp.NeedsCover = filter(wq.NeedsCover)
	cp.GeneratingAudio = filter(wq.GeneratingAudio)
	cp.RetryPending = filter(wq.RetryPending)
	cp.Stale = nil
	return &cp
}
