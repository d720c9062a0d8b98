package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// AssetKind identifies the media type of a stored asset.
type AssetKind string

const (
	AssetVideo AssetKind = "video"
	AssetAudio AssetKind = "audio"
)

// MediaAsset is a stored media object plus its probed duration.
// DurationSeconds always comes from probing the file, never from assumptions.
type MediaAsset struct {
	Key             string    `json:"key"`
	DurationSeconds float64   `json:"duration_seconds"`
	Kind            AssetKind `json:"kind"`
}

// SynthesisRequest describes one speech-synthesis call. Immutable once built.
type SynthesisRequest struct {
	Text                  string  `json:"text"`
	Voice                 string  `json:"voice"`
	LanguageCode          string  `json:"language_code"`
	TargetDurationSeconds float64 `json:"target_duration_seconds,omitempty"`
	SpeechRate            float64 `json:"speech_rate,omitempty"`
}

// SynthesisResult carries the synthesized audio asset and the backend that produced it.
type SynthesisResult struct {
	Audio    MediaAsset `json:"audio"`
	Provider string     `json:"provider"`
}

// Word is a single transcribed word with timing.
type Word struct {
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// Transcript is the output of a transcription backend. Words may be empty
// when the backend does not provide word-level timestamps.
type Transcript struct {
	FullText        string  `json:"full_text"`
	Words           []Word  `json:"words,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	LanguageCode    string  `json:"language_code,omitempty"`
}

// CaptionSegment is one timed caption. Segments in a set are ordered and
// non-overlapping, with sub-second precision.
type CaptionSegment struct {
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Text         string  `json:"text"`
}

// CaptionSet is the active timed caption track for a project.
type CaptionSet struct {
	LanguageCode string            `json:"language_code"`
	Segments     []CaptionSegment  `json:"segments"`
	StyleHints   map[string]string `json:"style_hints,omitempty"`
}

// VersionKind identifies how a version record was produced.
type VersionKind string

const (
	VersionOriginal  VersionKind = "original"
	VersionVoiceover VersionKind = "voiceover"
	VersionDubbed    VersionKind = "dubbed"
)

// VersionRecord is one immutable entry in a project's processed-media history.
// The first record (the original upload) can never be replaced or deleted.
type VersionRecord struct {
	ID           uuid.UUID   `json:"id"`
	ProjectID    uuid.UUID   `json:"project_id"`
	Asset        MediaAsset  `json:"asset"`
	Kind         VersionKind `json:"kind"`
	LanguageCode string      `json:"language_code"`
	Tone         string      `json:"tone,omitempty"`
	ScriptText   string      `json:"script_text,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Project is the minimal project state the pipeline reads and writes.
type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// JobStatus tracks a queued localization run.
type JobStatus string

const (
	JobCreated JobStatus = "created"
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// JobMessage is the queue envelope for one localization run.
type JobMessage struct {
	JobID     string                 `json:"job_id"`
	ProjectID string                 `json:"project_id"`
	Workflow  string                 `json:"workflow"`
	Attempt   int                    `json:"attempt"`
	TraceID   string                 `json:"trace_id"`
	CreatedAt string                 `json:"created_at"`
	Payload   map[string]interface{} `json:"payload"`
}

// VoiceoverPayload is the payload for a voiceover job.
type VoiceoverPayload struct {
	Script       string `json:"script"`
	Tone         string `json:"tone"`
	LanguageCode string `json:"language_code"`
}

// CaptionPayload is the payload for a caption job. Script is optional; when
// empty the transcript of the current video is used instead.
type CaptionPayload struct {
	Script       string `json:"script,omitempty"`
	LanguageCode string `json:"language_code"`
}

// DubPayload is the payload for a dub job.
type DubPayload struct {
	TargetLanguage string `json:"target_language"`
	Voice          string `json:"voice,omitempty"`
}

// NormalizeLanguage canonicalizes a BCP 47 language code ("EN-us" -> "en-US").
// An unparseable code is returned unchanged so provider backends can still
// attempt it.
func NormalizeLanguage(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}
