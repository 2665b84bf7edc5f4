package speaker

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Log-mel filterbank parameters matching what ECAPA-TDNN style embedding
// models are trained on: 25 ms windows with a 10 ms hop at 16 kHz, 80 bins.
const (
	melBins     = 80
	frameLength = 400 // 25 ms at 16 kHz
	frameShift  = 160 // 10 ms at 16 kHz
	fftSize     = 512
	melLowHz    = 20.0
	melHighHz   = 7600.0
	logFloor    = 1e-10
)

// melFrontend computes 80-bin log-mel filterbank features, shape
// [frames][melBins]. It owns its FFT plan and filter tables and is reused
// across calls.
type melFrontend struct {
	fft     *fourier.FFT
	window  []float64
	filters [][]filterWeight
}

type filterWeight struct {
	bin    int
	weight float64
}

func newMelFrontend() *melFrontend {
	m := &melFrontend{
		fft:    fourier.NewFFT(fftSize),
		window: make([]float64, frameLength),
	}

	// Hamming window.
	for i := range m.window {
		m.window[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(frameLength-1))
	}

	m.filters = buildMelFilters()
	return m
}

// hzToMel converts a frequency to the mel scale.
func hzToMel(hz float64) float64 {
	return 1127.0 * math.Log(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Exp(mel/1127.0) - 1.0)
}

// buildMelFilters lays out the triangular filterbank over the FFT bins.
func buildMelFilters() [][]filterWeight {
	const sampleRate = 16000.0
	bins := fftSize/2 + 1

	lowMel := hzToMel(melLowHz)
	highMel := hzToMel(melHighHz)

	// melBins+2 evenly spaced points on the mel scale define the triangle
	// edges and centers.
	points := make([]float64, melBins+2)
	for i := range points {
		mel := lowMel + (highMel-lowMel)*float64(i)/float64(melBins+1)
		points[i] = melToHz(mel) * float64(fftSize) / sampleRate
	}

	filters := make([][]filterWeight, melBins)
	for f := 0; f < melBins; f++ {
		left, center, right := points[f], points[f+1], points[f+2]
		for bin := int(math.Ceil(left)); bin <= int(math.Floor(right)) && bin < bins; bin++ {
			if bin < 0 {
				continue
			}
			var w float64
			switch {
			case float64(bin) < center:
				w = (float64(bin) - left) / (center - left)
			default:
				w = (right - float64(bin)) / (right - center)
			}
			if w > 0 {
				filters[f] = append(filters[f], filterWeight{bin: bin, weight: w})
			}
		}
	}

	return filters
}

// features computes the log-mel matrix for a 16 kHz mono signal. Signals
// shorter than one frame yield an empty matrix.
func (m *melFrontend) features(samples []float32) [][]float32 {
	if len(samples) < frameLength {
		return nil
	}

	frames := 1 + (len(samples)-frameLength)/frameShift
	out := make([][]float32, frames)

	buf := make([]float64, fftSize)
	for fr := 0; fr < frames; fr++ {
		offset := fr * frameShift

		for i := 0; i < frameLength; i++ {
			buf[i] = float64(samples[offset+i]) * m.window[i]
		}
		for i := frameLength; i < fftSize; i++ {
			buf[i] = 0
		}

		spectrum := m.fft.Coefficients(nil, buf)

		power := make([]float64, len(spectrum))
		for i, c := range spectrum {
			re, im := real(c), imag(c)
			power[i] = re*re + im*im
		}

		row := make([]float32, melBins)
		for f, filter := range m.filters {
			var energy float64
			for _, fw := range filter {
				energy += fw.weight * power[fw.bin]
			}
			if energy < logFloor {
				energy = logFloor
			}
			row[f] = float32(math.Log(energy))
		}
		out[fr] = row
	}

	return out
}
