package speaker

import (
	"math"
	"runtime"

	"github.com/tphakala/go-tflite"

	"github.com/erikh/hoover/internal/errors"
)

// EmbeddingModel wraps a tflite speaker-embedding model session. The model
// consumes log-mel features and emits a fixed-dimension voice vector.
type EmbeddingModel struct {
	model       *tflite.Model
	interpreter *tflite.Interpreter
	frontend    *melFrontend
}

// NewEmbeddingModel loads the model and allocates its tensors.
func NewEmbeddingModel(modelPath string) (*EmbeddingModel, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, errors.Newf("cannot load speaker embedding model from %s", modelPath).
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(runtime.NumCPU())

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, errors.Newf("cannot create interpreter for speaker embedding model").
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		return nil, errors.Newf("tensor allocation failed for speaker embedding model").
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}

	return &EmbeddingModel{
		model:       model,
		interpreter: interpreter,
		frontend:    newMelFrontend(),
	}, nil
}

// Extract computes an embedding for 16 kHz mono samples: log-mel features are
// shaped to the model's first input (rank-2 [frames, 80] or rank-3
// [1, frames, 80]) and the output tensor is returned as a flat vector.
func (e *EmbeddingModel) Extract(samples []float32) ([]float32, error) {
	features := e.frontend.features(samples)
	if len(features) == 0 {
		return nil, errors.Newf("input too short for feature extraction: %d samples", len(samples)).
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}

	input := e.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, errors.Newf("cannot get input tensor").
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}

	dims := input.NumDims()
	if dims < 2 {
		return nil, errors.Newf("unexpected input tensor rank %d", dims).
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}
	if binDim := input.Dim(dims - 1); binDim != melBins {
		return nil, errors.Newf("model expects %d feature bins, frontend produces %d", binDim, melBins).
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}

	// The frames axis is fixed at allocation time; pad by looping the
	// features or truncate to fit.
	wantFrames := input.Dim(dims - 2)
	flat := flattenToFrames(features, wantFrames)

	copy(input.Float32s(), flat)

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.Newf("embedding inference failed").
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}

	output := e.interpreter.GetOutputTensor(0)
	if output == nil {
		return nil, errors.Newf("cannot get output tensor").
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}

	embedding := make([]float32, len(output.Float32s()))
	copy(embedding, output.Float32s())
	return embedding, nil
}

// flattenToFrames lays out exactly want frames row-major, repeating the
// signal from the start when it is shorter.
func flattenToFrames(features [][]float32, want int) []float32 {
	if want <= 0 {
		want = len(features)
	}

	flat := make([]float32, 0, want*melBins)
	for i := 0; i < want; i++ {
		flat = append(flat, features[i%len(features)]...)
	}
	return flat
}

// Close releases the interpreter and model.
func (e *EmbeddingModel) Close() {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
}

// CosineSimilarity is the normalized inner product of two vectors. Mismatched
// lengths, empty vectors and zero norms score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
