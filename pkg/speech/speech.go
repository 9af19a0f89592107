// Package speech provides speech-to-text transcription and transcript
// hygiene filtering.
//
// A [Transcriber] turns one chunk of capture audio into text. [Whisper]
// implements it against the OpenAI audio transcription API.
//
// Raw transcriptions pass through a [Filter] before storage. Acoustic
// models produce fluent boilerplate for silence and music ("Thanks for
// watching!", "[Music]"), and those phrases would otherwise be persisted
// as things the speaker said. The blocklist is data: built-in defaults
// via [DefaultRules], overridable from a YAML rules file.
package speech

import (
	"context"
	"errors"
)

// Transcriber converts spoken audio into text.
type Transcriber interface {
	// Transcribe returns the transcription of one WAV chunk. Silence
	// yields an empty string, not an error.
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// ErrModel is returned when the transcription backend fails.
var ErrModel = errors.New("speech: transcription model failed")
