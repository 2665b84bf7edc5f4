package audio

import (
	"math"

	"github.com/erikh/hoover/internal/errors"
)

// resampleChunkSize is the number of accumulated mono frames required before a
// resample step runs. Leftover frames stay buffered for the next call.
const resampleChunkSize = 1024

// sincHalfWidth is the half-width of the windowed-sinc kernel in input
// frames. 16 taps per side keeps aliasing below the noise floor of speech
// while staying cheap enough for the realtime path.
const sincHalfWidth = 16

// Resampler converts interleaved multi-channel audio at an arbitrary device
// rate into mono 16 kHz float samples. It is stateful: partial input between
// calls is carried over, as is the filter history across block boundaries.
type Resampler struct {
	channels int
	inRate   int

	// Streaming state, only used when inRate != SampleRate.
	buf      []float32 // accumulated mono input, buf[0] is stream index consumed
	consumed int64     // absolute input index of buf[0]
	outIndex int64     // next output sample index
	cutoff   float64   // normalized low-pass cutoff relative to the input rate
}

// NewResampler creates a resampler for the given source format.
func NewResampler(sourceRate int, channels int) (*Resampler, error) {
	if sourceRate <= 0 {
		return nil, errors.Newf("invalid source sample rate: %d", sourceRate).
			Component("audio").
			Category(errors.CategoryResample).
			Build()
	}
	if channels <= 0 {
		return nil, errors.Newf("invalid channel count: %d", channels).
			Component("audio").
			Category(errors.CategoryResample).
			Build()
	}

	r := &Resampler{
		channels: channels,
		inRate:   sourceRate,
	}
	if sourceRate != SampleRate {
		// Cutoff at 95% of the narrower Nyquist band.
		r.cutoff = 0.95 * math.Min(1.0, float64(SampleRate)/float64(sourceRate))
	}
	return r, nil
}

// Process converts one interleaved buffer into mono 16 kHz samples. The
// returned slice may be empty when not enough input has accumulated yet.
func (r *Resampler) Process(interleaved []float32) ([]float32, error) {
	mono := r.downmix(interleaved)

	if r.inRate == SampleRate {
		return mono, nil
	}

	r.buf = append(r.buf, mono...)
	if len(r.buf) < resampleChunkSize {
		return nil, nil
	}
	return r.resampleAvailable(), nil
}

// downmix averages interleaved channels into mono frames.
func (r *Resampler) downmix(interleaved []float32) []float32 {
	if r.channels == 1 {
		out := make([]float32, len(interleaved))
		copy(out, interleaved)
		return out
	}

	frames := len(interleaved) / r.channels
	out := make([]float32, frames)
	scale := 1.0 / float32(r.channels)
	for i := 0; i < frames; i++ {
		var sum float32
		base := i * r.channels
		for c := 0; c < r.channels; c++ {
			sum += interleaved[base+c]
		}
		out[i] = sum * scale
	}
	return out
}

// resampleAvailable produces every output sample whose sinc window is fully
// covered by buffered input, then drops the consumed prefix while keeping
// enough history for the next block.
func (r *Resampler) resampleAvailable() []float32 {
	var out []float32

	for {
		// Input position of the next output sample, as an exact rational.
		num := r.outIndex * int64(r.inRate)
		center := num / int64(SampleRate)
		frac := float64(num%int64(SampleRate)) / float64(SampleRate)

		// The kernel needs input frames center-sincHalfWidth+1 .. center+sincHalfWidth.
		last := center + sincHalfWidth
		if last >= r.consumed+int64(len(r.buf)) {
			break
		}

		out = append(out, r.interpolate(center, frac))
		r.outIndex++
	}

	// Keep sincHalfWidth*2 frames of history behind the next output center.
	nextCenter := r.outIndex * int64(r.inRate) / int64(SampleRate)
	keepFrom := nextCenter - 2*sincHalfWidth
	if keepFrom > r.consumed {
		drop := keepFrom - r.consumed
		if drop > int64(len(r.buf)) {
			drop = int64(len(r.buf))
		}
		r.buf = r.buf[:copy(r.buf, r.buf[drop:])]
		r.consumed += drop
	}

	return out
}

// interpolate evaluates the windowed-sinc kernel at input position
// center+frac. Coefficients are normalized per output sample to avoid DC
// ripple from the finite window.
func (r *Resampler) interpolate(center int64, frac float64) float32 {
	var acc, norm float64

	for k := int64(-sincHalfWidth + 1); k <= sincHalfWidth; k++ {
		idx := center + k - r.consumed
		if idx < 0 || idx >= int64(len(r.buf)) {
			continue
		}

		x := float64(k) - frac
		c := r.cutoff * sinc(r.cutoff*x) * hann(x)
		acc += c * float64(r.buf[idx])
		norm += c
	}

	if norm == 0 {
		return 0
	}
	return float32(acc / norm)
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// hann evaluates a Hann window over the kernel support.
func hann(x float64) float64 {
	if math.Abs(x) >= sincHalfWidth {
		return 0
	}
	return 0.5 + 0.5*math.Cos(math.Pi*x/sincHalfWidth)
}
