package voiceprint

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/earshot-ai/earshot/pkg/audio"
	"github.com/earshot-ai/earshot/pkg/wav"
)

// fakeModel returns a fixed embedding or a canned error.
type fakeModel struct {
	embedding []float32
	err       error
	calls     int
}

func (f *fakeModel) Embed(_ context.Context, _ []int16) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.embedding, nil
}

// chunk builds a valid mono WAV of the given duration.
func chunk(t *testing.T, d time.Duration) []byte {
	t.Helper()
	n := int(d * audio.ModelRate / time.Second)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(3000 * math.Sin(2*math.Pi*200*float64(i)/audio.ModelRate))
	}
	data, err := wav.Encode(&wav.Audio{SampleRate: audio.ModelRate, Channels: 1, Samples: samples})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestGateVerifyAccepts(t *testing.T) {
	enrolled := []float32{1, 0, 0}
	gate := NewGate(&fakeModel{embedding: []float32{0.9, 0.1, 0}}, 0.65)

	dec, err := gate.Verify(context.Background(), chunk(t, 5*time.Second), enrolled, CaptureWindow)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Accepted {
		t.Errorf("Accepted = false, similarity %f", dec.Similarity)
	}
	if dec.Similarity < 0.9 {
		t.Errorf("Similarity = %f, want > 0.9", dec.Similarity)
	}
}

func TestGateVerifyRejects(t *testing.T) {
	enrolled := []float32{1, 0, 0}
	gate := NewGate(&fakeModel{embedding: []float32{0, 1, 0}}, 0.65)

	dec, err := gate.Verify(context.Background(), chunk(t, 5*time.Second), enrolled, CaptureWindow)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Accepted {
		t.Error("orthogonal speaker embedding should be rejected")
	}
	if dec.Similarity != 0 {
		t.Errorf("Similarity = %f, want 0", dec.Similarity)
	}
}

func TestGateVerifyNotEnrolled(t *testing.T) {
	gate := NewGate(&fakeModel{embedding: []float32{1, 0, 0}}, 0)
	_, err := gate.Verify(context.Background(), chunk(t, 5*time.Second), nil, CaptureWindow)
	if !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("err = %v, want ErrNotEnrolled", err)
	}
}

func TestGateDurationWindow(t *testing.T) {
	model := &fakeModel{embedding: []float32{1, 0, 0}}
	gate := NewGate(model, 0.65)
	enrolled := []float32{1, 0, 0}

	tests := []struct {
		name string
		d    time.Duration
		win  Window
		ok   bool
	}{
		{"capture lower bound", time.Second, CaptureWindow, true},
		{"capture upper bound", 60 * time.Second, CaptureWindow, true},
		{"capture too short", 500 * time.Millisecond, CaptureWindow, false},
		{"capture too long", 61 * time.Second, CaptureWindow, false},
		{"enrollment in range", 20 * time.Second, EnrollmentWindow, true},
		{"enrollment too short", 5 * time.Second, EnrollmentWindow, false},
		{"enrollment too long", 31 * time.Second, EnrollmentWindow, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model.calls = 0
			_, err := gate.Verify(context.Background(), chunk(t, tt.d), enrolled, tt.win)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if !errors.Is(err, ErrAudio) {
					t.Fatalf("err = %v, want ErrAudio", err)
				}
				// Out-of-window audio must never reach the model.
				if model.calls != 0 {
					t.Error("model was called for out-of-window audio")
				}
			}
		})
	}
}

func TestGateMalformedAudio(t *testing.T) {
	gate := NewGate(&fakeModel{embedding: []float32{1}}, 0.65)
	_, err := gate.Verify(context.Background(), []byte("not a wav"), []float32{1}, CaptureWindow)
	if !errors.Is(err, ErrAudio) {
		t.Errorf("err = %v, want ErrAudio", err)
	}
	if !errors.Is(err, wav.ErrFormat) {
		t.Errorf("err = %v, should retain wav.ErrFormat detail", err)
	}
}

func TestGateModelFailure(t *testing.T) {
	gate := NewGate(&fakeModel{err: errors.New("connection refused")}, 0.65)
	_, err := gate.Verify(context.Background(), chunk(t, 5*time.Second), []float32{1}, CaptureWindow)
	if !errors.Is(err, ErrModel) {
		t.Errorf("err = %v, want ErrModel", err)
	}
}

func TestGateExtract(t *testing.T) {
	want := []float32{0.1, 0.2, 0.3}
	gate := NewGate(&fakeModel{embedding: want}, 0)

	got, err := gate.Extract(context.Background(), chunk(t, 20*time.Second), EnrollmentWindow)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("embedding length = %d, want %d", len(got), len(want))
	}
}

func TestGateDefaultThreshold(t *testing.T) {
	gate := NewGate(&fakeModel{}, 0)
	if gate.Threshold() != DefaultThreshold {
		t.Errorf("Threshold = %f, want %f", gate.Threshold(), DefaultThreshold)
	}
	gate = NewGate(&fakeModel{}, 0.8)
	if gate.Threshold() != 0.8 {
		t.Errorf("Threshold = %f, want 0.8", gate.Threshold())
	}
}

// Acceptance must be monotonic in the threshold: an accepted similarity
// also passes every lower threshold, and fails every threshold strictly
// above it.
func TestGateThresholdMonotonic(t *testing.T) {
	emb := []float32{0.8, 0.6, 0}
	enrolled := []float32{1, 0, 0}
	sim := Similarity(emb, enrolled) // 0.8

	for _, th := range []float64{0.1, 0.5, sim, math.Nextafter(sim, 1), 0.9} {
		gate := NewGate(&fakeModel{embedding: emb}, th)
		dec, err := gate.Verify(context.Background(), chunk(t, 5*time.Second), enrolled, CaptureWindow)
		if err != nil {
			t.Fatal(err)
		}
		want := sim >= th
		if dec.Accepted != want {
			t.Errorf("threshold %f: Accepted = %v, want %v", th, dec.Accepted, want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"scaled", []float32{2, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite clamps to zero", []float32{1, 0, 0}, []float32{-1, 0, 0}, 0},
		{"dimension mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{Min: time.Second, Max: time.Minute}
	if !w.Contains(time.Second) || !w.Contains(time.Minute) {
		t.Error("bounds should be inclusive")
	}
	if w.Contains(999*time.Millisecond) || w.Contains(time.Minute+time.Nanosecond) {
		t.Error("out-of-range durations should be excluded")
	}
}
