package events

const (
	SubjectSessionRequest = "counsel.session.request"

	StreamName   = "ELICIT_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectSessionCreated(sessionID string) string {
	return "counsel.session." + sessionID + ".created"
}

func SubjectVignetteSelected(sessionID string) string {
	return "counsel.session." + sessionID + ".vignette.selected"
}

func SubjectChoiceRecorded(sessionID string) string {
	return "counsel.session." + sessionID + ".choice.recorded"
}

func SubjectAdaptiveCompleted(sessionID string) string {
	return "counsel.session." + sessionID + ".adaptive.completed"
}

func SubjectSessionCompleted(sessionID string) string {
	return "counsel.session." + sessionID + ".completed"
}

func SubjectSessionAbandoned(sessionID string) string {
	return "counsel.session." + sessionID + ".abandoned"
}
