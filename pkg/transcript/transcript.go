// Package transcript stores accepted speech segments and serves the
// retrieval queries behind chat.
//
// A [Segment] is one gated, transcribed unit of speech. Rows are
// msgpack-encoded in a [kv.Store] under time-ordered keys, so listing is
// a reverse prefix scan and needs no secondary index. Semantic search
// runs against a per-user [vecstore.HNSW] index that is built lazily
// from the stored embedding rows and snapshotted through [storage.Store]
// across restarts.
//
// Embedding attachment is a best-effort suffix of [Store.Append]: the
// segment row is durable first, and an embedding failure is reported in
// the returned [EmbedResult] instead of failing the append.
// [Store.BackfillEmbeddings] re-attempts the gaps out of band.
package transcript

import (
	"errors"
	"time"
)

// Session boundary: a chunk starting more than this long after the end
// of the user's most recent segment opens a new session.
const DefaultSessionGap = 5 * time.Minute

// Speaker classifies who produced a segment.
type Speaker string

const (
	// SpeakerPrimary is the enrolled device owner.
	SpeakerPrimary Speaker = "primary"

	// SpeakerConsented is an enrolled secondary speaker.
	SpeakerConsented Speaker = "consented"
)

// ErrEmptyText is returned by [Store.Append] for segments whose text is
// empty after trimming. Callers treat it as a normal no-store outcome,
// not a failure.
var ErrEmptyText = errors.New("transcript: empty text")

// Segment is one accepted, transcribed unit of speech.
//
// Timestamps are canonical-clock instants (UTC, no zone) stored as Unix
// nanoseconds. Latitude and longitude are optional; Location is the
// reverse-geocoded place name when one was resolved.
type Segment struct {
	// ID uniquely identifies the segment. Assigned by Append.
	ID string `msgpack:"id"`

	// UserID is the owning user.
	UserID string `msgpack:"uid"`

	// SessionID groups segments into conversations (see SessionTracker).
	SessionID string `msgpack:"sid"`

	// Speaker classifies the voice that produced the segment.
	Speaker Speaker `msgpack:"spk"`

	// SpeakerID identifies a consented secondary speaker. Empty for the
	// primary user.
	SpeakerID string `msgpack:"spkid,omitempty"`

	// SpeakerName is the display name used in context assembly.
	SpeakerName string `msgpack:"spkname"`

	// Text is the transcribed speech.
	Text string `msgpack:"text"`

	// Start and End bound the audio chunk, Unix nanoseconds. End >= Start.
	Start int64 `msgpack:"start"`
	End   int64 `msgpack:"end"`

	// Latitude and Longitude are the capture coordinates, rounded to six
	// decimals. Nil when the device sent no fix.
	Latitude  *float64 `msgpack:"lat,omitempty"`
	Longitude *float64 `msgpack:"lon,omitempty"`

	// Location is the resolved place name, empty when unknown.
	Location string `msgpack:"loc,omitempty"`

	// CreatedAt is the append instant, Unix nanoseconds.
	CreatedAt int64 `msgpack:"created"`
}

// StartTime returns Start as a canonical-clock time.
func (s Segment) StartTime() time.Time { return nanoTime(s.Start) }

// EndTime returns End as a canonical-clock time.
func (s Segment) EndTime() time.Time { return nanoTime(s.End) }

// CreatedTime returns CreatedAt as a canonical-clock time.
func (s Segment) CreatedTime() time.Time { return nanoTime(s.CreatedAt) }

// nanoTime converts Unix nanoseconds to a UTC time.
func nanoTime(ns int64) time.Time { return time.Unix(0, ns).UTC() }

// EmbedResult reports the best-effort embedding step of [Store.Append].
// When the attempt failed, Attached is false and Err carries the
// diagnostic; the segment row is durable either way.
type EmbedResult struct {
	Attached bool
	Err      error
}

// Match pairs a retrieved segment with its cosine distance to the query
// vector. Lower distance means higher similarity.
type Match struct {
	Segment  Segment
	Distance float32
}
