package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/earshot-ai/earshot/pkg/isotime"
	"github.com/earshot-ai/earshot/pkg/metrics"
	"github.com/earshot-ai/earshot/pkg/transcript"
	"github.com/earshot-ai/earshot/pkg/voiceprint"
)

// segmentJSON is the wire form of a transcript segment. Timestamps use
// the canonical unzoned layout.
type segmentJSON struct {
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

func segmentJSONOf(seg transcript.Segment) *segmentJSON {
	return &segmentJSON{
		ID:          seg.ID,
		SessionID:   seg.SessionID,
		Speaker:     string(seg.Speaker),
		SpeakerName: seg.SpeakerName,
		Text:        seg.Text,
		Start:       isotime.FromUnixNano(seg.Start),
		End:         isotime.FromUnixNano(seg.End),
		Latitude:    seg.Latitude,
		Longitude:   seg.Longitude,
		Location:    seg.Location,
		CreatedAt:   isotime.FromUnixNano(seg.CreatedAt),
	}
}

type transcribeResponse struct {
	Processed bool         `json:"processed"`
	Segment   *segmentJSON `json:"segment,omitempty"`
	Filtered  int          `json:"filtered_segments"`
	SessionID string       `json:"session_id,omitempty"`
}

type transcriptsResponse struct {
	Transcripts []segmentJSON `json:"transcripts"`
	TotalCount  int           `json:"total_count"`
}

type enrollResponse struct {
	Status    string `json:"status"`
	Dimension int    `json:"voiceprint_dimension"`
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadyz(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.log.Warn("readiness probe failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// handleEnroll stores the caller's voiceprint from a consent recording.
func (s *Server) handleEnroll(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	data, err := formAudio(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	vec, err := s.gate.Extract(ctx, data, voiceprint.EnrollmentWindow)
	if err != nil {
		s.fail(c, err)
		return
	}

	if _, err := s.users.SetVoiceprint(ctx, user.ID, vec); err != nil {
		s.fail(c, err)
		return
	}
	s.archiveConsent(ctx, user.ID, data)

	s.metrics.RecordEnrollment()
	s.log.Info("voiceprint enrolled", "user", user.ID, "dimension", len(vec))
	c.JSON(http.StatusOK, enrollResponse{Status: "enrolled", Dimension: len(vec)})
}

// handleTranscribe runs one capture chunk through the pipeline: gate,
// transcribe, hygiene filter, session resolution, persist.
func (s *Server) handleTranscribe(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	data, err := formAudio(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	start, err := isotime.Parse(c.PostForm("timestamp_start"))
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("timestamp_start: %v", err))
		return
	}
	end, err := isotime.Parse(c.PostForm("timestamp_end"))
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("timestamp_end: %v", err))
		return
	}
	if end.Before(start) {
		respondError(c, http.StatusBadRequest, "timestamp_end precedes timestamp_start")
		return
	}
	lat, lon, err := formCoords(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := s.gate.Verify(ctx, data, user.Voiceprint, voiceprint.CaptureWindow)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.ObserveSimilarity(decision.Similarity)
	if !decision.Accepted {
		s.metrics.RecordSegment(false, metrics.ReasonSpeaker)
		s.log.Info("chunk rejected by speaker gate",
			"user", user.ID, "similarity", decision.Similarity)
		c.JSON(http.StatusOK, transcribeResponse{Filtered: 1})
		return
	}

	asrStart := time.Now()
	text, err := s.transcriber.Transcribe(ctx, data)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.ObserveTranscription(time.Since(asrStart).Seconds())

	text, kept := s.filter.Clean(text)
	if !kept {
		s.metrics.RecordSegment(false, metrics.ReasonHygiene)
		c.JSON(http.StatusOK, transcribeResponse{Filtered: 1})
		return
	}

	sessionID, fresh, err := s.sessions.Resolve(ctx, user.ID, start.Time())
	if err != nil {
		s.fail(c, err)
		return
	}
	if fresh {
		s.metrics.RecordSessionStarted()
	}

	seg := transcript.Segment{
		UserID:      user.ID,
		SessionID:   sessionID,
		Speaker:     transcript.SpeakerPrimary,
		SpeakerName: user.Name,
		Text:        text,
		Start:       start.UnixNano(),
		End:         end.UnixNano(),
		Latitude:    lat,
		Longitude:   lon,
	}
	if lat != nil && lon != nil && s.geocoder != nil {
		seg.Location = s.geocoder.Reverse(ctx, *lat, *lon).Name
	}

	stored, embedded, err := s.store.Append(ctx, seg)
	if err != nil {
		if errors.Is(err, transcript.ErrEmptyText) {
			s.metrics.RecordSegment(false, metrics.ReasonEmpty)
			c.JSON(http.StatusOK, transcribeResponse{Filtered: 1})
			return
		}
		s.fail(c, err)
		return
	}
	if embedded.Err != nil {
		s.metrics.RecordEmbedFailure()
	}
	s.metrics.RecordSegment(true, "")

	c.JSON(http.StatusOK, transcribeResponse{
		Processed: true,
		Segment:   segmentJSONOf(stored),
		SessionID: stored.SessionID,
	})
}

// handleTranscripts lists the caller's segments, newest first.
func (s *Server) handleTranscripts(c *gin.Context) {
	user := currentUser(c)

	opts := transcript.ListOptions{SessionID: c.Query("session_id")}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			respondError(c, http.StatusBadRequest, "limit must be an integer between 1 and 100")
			return
		}
		opts.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(c, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		opts.Offset = n
	}

	segs, total, err := s.store.List(c.Request.Context(), user.ID, opts)
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]segmentJSON, len(segs))
	for i, seg := range segs {
		out[i] = *segmentJSONOf(seg)
	}
	c.JSON(http.StatusOK, transcriptsResponse{Transcripts: out, TotalCount: total})
}

// formAudio reads the uploaded audio field.
func formAudio(c *gin.Context) ([]byte, error) {
	file, err := c.FormFile("audio")
	if err != nil {
		return nil, errors.New("audio file is required")
	}
	if file.Size > maxUploadBytes {
		return nil, fmt.Errorf("audio exceeds %d bytes", maxUploadBytes)
	}
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

// formCoords reads the optional capture coordinates. Both fields must
// be present or both absent.
func formCoords(c *gin.Context) (lat, lon *float64, err error) {
	latStr := strings.TrimSpace(c.PostForm("latitude"))
	lonStr := strings.TrimSpace(c.PostForm("longitude"))
	if latStr == "" && lonStr == "" {
		return nil, nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, nil, errors.New("latitude and longitude must be sent together")
	}

	la, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("latitude: %q is not a number", latStr)
	}
	lo, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("longitude: %q is not a number", lonStr)
	}
	if la < -90 || la > 90 {
		return nil, nil, fmt.Errorf("latitude %v out of range", la)
	}
	if lo < -180 || lo > 180 {
		return nil, nil, fmt.Errorf("longitude %v out of range", lo)
	}
	return &la, &lo, nil
}

// archiveConsent keeps the latest consent recording per user. Failures
// are logged, never surfaced: the enrollment itself already succeeded.
func (s *Server) archiveConsent(ctx context.Context, userID string, data []byte) {
	if s.consent == nil {
		return
	}
	name := path.Join("consent", userID+".wav")
	w, err := s.consent.Create(ctx, name)
	if err != nil {
		s.log.Warn("consent archive failed", "user", userID, "error", err)
		return
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		s.log.Warn("consent archive failed", "user", userID, "error", err)
		return
	}
	if err := w.Close(); err != nil {
		s.log.Warn("consent archive failed", "user", userID, "error", err)
	}
}
