// Package audio normalizes decoded PCM into the one format the acoustic
// models accept: 16 kHz mono 16-bit samples.
//
// Capture clients upload whatever their hardware records. The voiceprint
// and transcription models are trained on a single canonical format, so
// every chunk is downmixed and resampled here before extraction,
// regardless of how it arrived.
package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/earshot-ai/earshot/pkg/wav"
)

// ModelRate is the sample rate expected by the speaker-embedding and
// transcription models.
const ModelRate = 16000

// Normalize converts decoded audio to mono [ModelRate] PCM.
func Normalize(a *wav.Audio) ([]int16, error) {
	if a.Channels <= 0 {
		return nil, fmt.Errorf("audio: invalid channel count %d", a.Channels)
	}
	mono := Downmix(a.Samples, a.Channels)
	if a.SampleRate == ModelRate {
		return mono, nil
	}
	return Resample(mono, a.SampleRate, ModelRate)
}

// Downmix collapses interleaved multi-channel PCM to mono by averaging
// the channels of each frame. Mono input is returned as is.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(samples[i*channels+c])
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

// Resample converts mono PCM from srcRate to dstRate using a pure Go
// windowed-sinc resampler. Output length may differ from the exact rate
// ratio by the filter delay; for speech chunks measured in seconds the
// difference is inaudible and irrelevant to embedding extraction.
func Resample(samples []int16, srcRate, dstRate int) ([]int16, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("audio: invalid rates %d -> %d", srcRate, dstRate)
	}
	if srcRate == dstRate {
		return samples, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create resampler: %w", err)
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s) / 32768.0
	}

	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("audio: resample: %w", err)
	}

	out := make([]int16, len(output))
	for i, s := range output {
		switch {
		case s >= 1.0:
			out[i] = 32767
		case s <= -1.0:
			out[i] = -32768
		default:
			out[i] = int16(s * 32767.0)
		}
	}
	return out, nil
}
