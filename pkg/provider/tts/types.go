package tts

// VoiceProfile selects the interviewer's voice.
type VoiceProfile struct {
	// ID is the engine's voice identifier. Empty selects the engine default.
	ID       string
	Name     string
	Provider string

	// SpeedFactor scales the speaking rate. Zero keeps the engine default;
	// ElevenLabs accepts 0.7 to 1.2.
	SpeedFactor float64

	// Metadata holds descriptive labels such as accent or gender as reported
	// by the engine's voice catalogue.
	Metadata map[string]string
}
