package pipeline

// naturalCharsPerSecond is the assumed speaking rate at speed 1.0.
const naturalCharsPerSecond = 12.5

const (
	minSpeechRate = 0.1
	maxSpeechRate = 3.0
)

// SpeechRate derives the synthesis speed needed to fit charCount characters
// of text into durationSeconds of audio, clamped to the range synthesis
// backends accept.
func SpeechRate(charCount int, durationSeconds float64) float64 {
	if durationSeconds <= 0 {
		return 1.0
	}
	rate := (float64(charCount) / durationSeconds) / naturalCharsPerSecond
	if rate < minSpeechRate {
		return minSpeechRate
	}
	if rate > maxSpeechRate {
		return maxSpeechRate
	}
	return rate
}
