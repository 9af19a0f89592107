// Package rag answers natural-language questions over a user's
// transcript history with retrieval-augmented generation.
//
// A [ContextBuilder] turns one query into a character-budgeted context
// block: it reads an explicit time window out of the query text
// ("yesterday", "last week"), embeds the query, searches the transcript
// store, and formats the nearest segments most-similar first. A
// [Responder] hands that context to a [llm.Generator] and replays the
// answer as an ordered [EventStream]: text fragments as they are
// generated, then up to five citations, then one done event. A failure
// during generation ends the stream with an error event instead of
// done.
package rag

import "errors"

// ErrEmbedQuery marks a query-embedding failure. Retrieval cannot run
// without the query vector, so the request fails instead of answering
// from an unfiltered context.
var ErrEmbedQuery = errors.New("rag: query embedding failed")

// ErrGenerate marks a failure to open the generation stream. Failures
// after the stream opens are reported as error events instead.
var ErrGenerate = errors.New("rag: generation failed")

const (
	// maxContextTokens caps the retrieved context handed to the model,
	// counted at avgCharsPerToken characters per token.
	maxContextTokens = 6000
	avgCharsPerToken = 4

	// searchLimit is how many segments one query retrieves.
	searchLimit = 10

	// maxCitations caps the citation trailer of a response.
	maxCitations = 5

	// snippetLen bounds a citation's text preview, in bytes.
	snippetLen = 200
)

// Event types in stream order. A stream is zero or more text events,
// then up to five citation events, then exactly one done event; a
// failed stream ends with a single error event instead.
const (
	EventText     = "text"
	EventCitation = "citation"
	EventDone     = "done"
	EventError    = "error"
)

// Event is one frame of a chat response stream. Type selects which of
// the remaining fields are set: Content for text events, Message for
// error events, the embedded citation fields for citation events.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
	*Citation
}

// Citation points an answer back at one stored segment.
type Citation struct {
	TranscriptID string `json:"transcript_id"`
	SpeakerName  string `json:"speaker_name"`
	Timestamp    string `json:"timestamp"`
	Location     string `json:"location,omitempty"`
	Snippet      string `json:"text_snippet"`
}

// Turn is one prior exchange of the conversation, oldest first. Role is
// "user" or "assistant".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
