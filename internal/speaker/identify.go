package speaker

import (
	"log/slog"
	"math"

	"github.com/erikh/hoover/internal/audio"
	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/errors"
	"github.com/erikh/hoover/internal/logging"
)

// emaAlpha is the blending factor for continuous profile refinement. Small
// values evolve a profile slowly; enrollment remains the durable source of
// truth.
const emaAlpha = 0.01

// emaUpdateThreshold is the similarity required before a match is trusted
// enough to refine the stored embedding.
const emaUpdateThreshold = 0.85

// saveInterval persists profiles to disk every N online updates. A crash
// between saves loses at most saveInterval refinements.
const saveInterval = 10

// identifyWindowSamples is the scoring window: three seconds at 16 kHz.
const identifyWindowSamples = 3 * audio.SampleRate

// minWindowSamples skips trailing windows shorter than one second.
const minWindowSamples = audio.SampleRate

// embedder extracts a voice vector from 16 kHz mono samples.
type embedder interface {
	Extract(samples []float32) ([]float32, error)
}

// Match is the result of a speaker identification attempt. Name is empty
// when no enrolled profile matched.
type Match struct {
	Name       string
	Confidence float64
}

// Identifier scores chunks against the enrolled profiles and refines matched
// profiles online. It is owned by the transcription worker goroutine.
type Identifier struct {
	profiles []*Profile
	model    embedder
	closer   func()

	minConfidence float64
	filterUnknown bool
	profilesDir   string

	updatesSinceSave int
	log              *slog.Logger
}

// NewIdentifier loads all profiles and the embedding model session.
func NewIdentifier(cfg *conf.SpeakerConfig) (*Identifier, error) {
	if cfg.ModelPath == "" {
		return nil, errors.Newf("speaker identification requires speaker.modelpath to be set").
			Component("speaker").
			Category(errors.CategoryConfiguration).
			Build()
	}

	model, err := NewEmbeddingModel(conf.ExpandPath(cfg.ModelPath))
	if err != nil {
		return nil, err
	}

	profilesDir := conf.ExpandPath(cfg.ProfilesDir)
	profiles, err := LoadAllProfiles(profilesDir)
	if err != nil {
		model.Close()
		return nil, err
	}

	log := logging.ForService("speaker")
	log.Info("loaded speaker profiles", "count", len(profiles))

	return &Identifier{
		profiles:      profiles,
		model:         model,
		closer:        model.Close,
		minConfidence: cfg.MinConfidence,
		filterUnknown: cfg.FilterUnknown,
		profilesDir:   profilesDir,
		log:           log,
	}, nil
}

// newIdentifierWithEmbedder wires a custom embedder; used by tests.
func newIdentifierWithEmbedder(model embedder, profiles []*Profile, cfg *conf.SpeakerConfig, dir string) *Identifier {
	return &Identifier{
		profiles:      profiles,
		model:         model,
		minConfidence: cfg.MinConfidence,
		filterUnknown: cfg.FilterUnknown,
		profilesDir:   dir,
		log:           logging.ForService("speaker"),
	}
}

// Identify scores 16 kHz mono samples against the enrolled profiles.
//
// The input is split into non-overlapping three-second windows (short
// trailing windows are skipped); the best window/profile pair wins. A match
// at or above the EMA threshold additionally refines the stored embedding.
//
// Returns nil when filter_unknown is set and nothing matched, so the caller
// suppresses the speaker tag.
func (id *Identifier) Identify(samples []float32) (*Match, error) {
	if len(id.profiles) == 0 {
		return &Match{}, nil
	}

	var (
		bestScore     = math.Inf(-1)
		bestProfile   *Profile
		bestEmbedding []float32
	)

	for _, window := range splitWindows(samples) {
		embedding, err := id.model.Extract(window)
		if err != nil {
			return nil, err
		}

		for _, profile := range id.profiles {
			score := CosineSimilarity(embedding, profile.Embedding)
			if score > bestScore {
				bestScore = score
				bestProfile = profile
				bestEmbedding = embedding
			}
		}
	}

	if bestProfile == nil {
		return nil, errors.Newf("no scoring window in %d samples", len(samples)).
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}

	if bestScore >= id.minConfidence {
		if bestScore >= emaUpdateThreshold {
			id.refine(bestProfile, bestEmbedding)
		}
		return &Match{Name: bestProfile.Name, Confidence: bestScore}, nil
	}

	if id.filterUnknown {
		return nil, nil
	}
	return &Match{Confidence: bestScore}, nil
}

// splitWindows slices samples into scoring windows. When less than one full
// window exists the whole input is scored once.
func splitWindows(samples []float32) [][]float32 {
	if len(samples) < identifyWindowSamples {
		return [][]float32{samples}
	}

	var windows [][]float32
	for start := 0; start < len(samples); start += identifyWindowSamples {
		end := start + identifyWindowSamples
		if end > len(samples) {
			end = len(samples)
		}
		if end-start < minWindowSamples {
			break
		}
		windows = append(windows, samples[start:end])
	}
	return windows
}

// refine blends the new embedding into the matched profile and renormalizes.
func (id *Identifier) refine(profile *Profile, embedding []float32) {
	if len(profile.Embedding) != len(embedding) {
		return
	}

	for i := range profile.Embedding {
		profile.Embedding[i] = (1-emaAlpha)*profile.Embedding[i] + emaAlpha*embedding[i]
	}
	normalize(profile.Embedding)

	id.updatesSinceSave++
	if id.updatesSinceSave >= saveInterval {
		id.saveProfiles()
		id.updatesSinceSave = 0
	}
}

// normalize scales a vector to unit L2 norm in place.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

func (id *Identifier) saveProfiles() {
	for _, profile := range id.profiles {
		if _, err := profile.Save(id.profilesDir); err != nil {
			id.log.Warn("failed to save profile", "name", profile.Name, "error", err)
		}
	}
	id.log.Debug("saved speaker profiles", "count", len(id.profiles))
}

// Flush persists any pending profile updates. Called at shutdown.
func (id *Identifier) Flush() {
	if id.updatesSinceSave > 0 {
		id.saveProfiles()
		id.updatesSinceSave = 0
	}
}

// Close releases the model session.
func (id *Identifier) Close() {
	if id.closer != nil {
		id.closer()
		id.closer = nil
	}
}
