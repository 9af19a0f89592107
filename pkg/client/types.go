package client

import (
	"io"
	"time"

	"github.com/earshot-ai/earshot/pkg/isotime"
)

// Segment is one stored transcript row as returned by the API.
type Segment struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	Speaker     string       `json:"speaker_type"`
	SpeakerName string       `json:"speaker_name"`
	Text        string       `json:"text"`
	Start       isotime.Time `json:"timestamp_start"`
	End         isotime.Time `json:"timestamp_end"`
	Latitude    *float64     `json:"latitude,omitempty"`
	Longitude   *float64     `json:"longitude,omitempty"`
	Location    string       `json:"location_name,omitempty"`
	CreatedAt   isotime.Time `json:"created_at"`
}

// EnrollResult is the response of a voiceprint enrollment.
type EnrollResult struct {
	Status    string `json:"status"`
	Dimension int    `json:"voiceprint_dimension"`
}

// TranscribeRequest carries one audio chunk through the capture
// pipeline.
type TranscribeRequest struct {
	// Audio is the WAV chunk. Required.
	Audio io.Reader

	// Filename labels the upload part. Defaults to "chunk.wav".
	Filename string

	// Start and End bound the chunk on the device clock. Required.
	Start time.Time
	End   time.Time

	// Latitude and Longitude are the capture coordinates. Both or
	// neither.
	Latitude  *float64
	Longitude *float64
}

// TranscribeResult reports what the pipeline did with one chunk.
type TranscribeResult struct {
	Processed bool     `json:"processed"`
	Segment   *Segment `json:"segment,omitempty"`
	Filtered  int      `json:"filtered_segments"`
	SessionID string   `json:"session_id,omitempty"`
}

// TranscriptsOptions pages through stored transcripts.
type TranscriptsOptions struct {
	// SessionID restricts the listing to one session.
	SessionID string

	// Limit is the page size, 1 to 100. Zero takes the server default.
	Limit int

	// Offset skips past rows, newest first.
	Offset int
}

// TranscriptPage is one page of the transcript listing.
type TranscriptPage struct {
	Transcripts []Segment `json:"transcripts"`
	TotalCount  int       `json:"total_count"`
}

// Turn is one prior exchange of a chat conversation, oldest first.
// Role is "user" or "assistant".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest asks a question over the caller's transcripts.
type ChatRequest struct {
	Message  string `json:"message"`
	History  []Turn `json:"history,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Event types streamed by [Client.Chat].
const (
	EventText     = "text"
	EventCitation = "citation"
	EventDone     = "done"
	EventError    = "error"
)

// Event is one frame of a chat response stream. Type selects which of
// the remaining fields are set.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
	*Citation
}

// Citation points a chat answer back at one stored segment.
type Citation struct {
	TranscriptID string `json:"transcript_id"`
	SpeakerName  string `json:"speaker_name"`
	Timestamp    string `json:"timestamp"`
	Location     string `json:"location,omitempty"`
	Snippet      string `json:"text_snippet"`
}
