package songmeta

const (
	DefaultBPM           = 120
	DefaultKeyScale      = "C major"
	DefaultTimeSignature = "4/4"
	DefaultDuration      = 180

	minBPM      = 40
	maxBPM      = 220
	minDuration = 30
	maxDuration = 600

	// repeatThreshold is the lyrics cosine similarity above which a draft is
	// regenerated.
	repeatThreshold = 0.8
)

var timeSignatures = map[string]bool{
	"2/4": true, "3/4": true, "4/4": true, "5/4": true, "6/8": true, "7/8": true, "12/8": true,
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
