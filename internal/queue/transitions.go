package queue

// songTransitions is the complete table of legal song status changes.
var songTransitions = map[Status][]Status{
	StatusPending:            {StatusGeneratingMetadata, StatusError},
	StatusGeneratingMetadata: {StatusMetadataReady, StatusError, StatusRetryPending, StatusPending},
	StatusMetadataReady:      {StatusSubmittingToACE, StatusError, StatusRetryPending},
	StatusSubmittingToACE:    {StatusGeneratingAudio, StatusError, StatusRetryPending, StatusMetadataReady},
	StatusGeneratingAudio:    {StatusSaving, StatusError, StatusRetryPending, StatusMetadataReady},
	StatusSaving:             {StatusReady, StatusError, StatusGeneratingAudio, StatusMetadataReady},
	StatusReady:              {StatusPlayed},
	StatusPlayed:             {StatusReady},
	StatusError:              {StatusPending, StatusMetadataReady, StatusRetryPending},
	StatusRetryPending:       {StatusPending, StatusMetadataReady, StatusError},
}

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionActive:  {SessionClosing, SessionClosed},
	SessionClosing: {SessionActive, SessionClosed},
	SessionClosed:  {},
}

var transientStatuses = map[Status]struct{}{
	StatusGeneratingMetadata: {},
	StatusSubmittingToACE:    {},
	StatusGeneratingAudio:    {},
	StatusSaving:             {},
}

// ValidTransition reports whether a song may move from one status to another.
// Unknown statuses are never valid.
func ValidTransition(from, to Status) bool {
	for _, candidate := range songTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidSessionTransition reports whether a session may move between statuses.
func ValidSessionTransition(from, to SessionStatus) bool {
	for _, candidate := range sessionTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s Status) []Status {
	next := songTransitions[s]
	cp := make([]Status, len(next))
	copy(cp, next)
	return cp
}

// IsTransient reports whether s marks a song as owned by an in-flight processor.
func IsTransient(s Status) bool {
	_, ok := transientStatuses[s]
	return ok
}

// TransientStatuses returns the in-flight statuses in pipeline order.
func TransientStatuses() []Status {
	return []Status{StatusGeneratingMetadata, StatusSubmittingToACE, StatusGeneratingAudio, StatusSaving}
}

// ResumeStatus picks where a retried song re-enters the pipeline. Songs that
// failed before their metadata existed start over; later failures keep the
// metadata and go back to audio submission.
func ResumeStatus(erroredAt Status) Status {
	switch erroredAt {
	case "", StatusPending, StatusGeneratingMetadata:
		return StatusPending
	default:
		return StatusMetadataReady
	}
}
