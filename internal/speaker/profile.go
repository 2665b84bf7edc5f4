// Package speaker implements voice-profile enrollment and speaker
// identification over tflite embeddings.
package speaker

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/erikh/hoover/internal/errors"
	"github.com/erikh/hoover/internal/logging"
)

// Profile is an enrolled speaker: a name and an embedding vector. The stored
// vector is kept L2-normalized after online updates.
//
// File format (<name>.bin, little-endian):
//
//	u32 name_len | name_bytes (UTF-8) | u32 emb_len | emb_len x f32
type Profile struct {
	Name      string
	Embedding []float32
}

// Marshal serializes the profile into its binary form.
func (p *Profile) Marshal() []byte {
	nameBytes := []byte(p.Name)

	data := make([]byte, 0, 8+len(nameBytes)+len(p.Embedding)*4)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(nameBytes)))
	data = append(data, nameBytes...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(p.Embedding)))
	for _, v := range p.Embedding {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
	}
	return data
}

// UnmarshalProfile parses the binary profile format.
func UnmarshalProfile(data []byte) (*Profile, error) {
	truncated := errors.Newf("profile data truncated").
		Component("speaker").
		Category(errors.CategorySpeaker).
		Build()

	if len(data) < 4 {
		return nil, truncated
	}

	nameLen := int(binary.LittleEndian.Uint32(data))
	pos := 4
	if len(data) < pos+nameLen+4 {
		return nil, truncated
	}

	name := string(data[pos : pos+nameLen])
	pos += nameLen

	embLen := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	if len(data) < pos+embLen*4 {
		return nil, truncated
	}

	embedding := make([]float32, embLen)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
	}

	return &Profile{Name: name, Embedding: embedding}, nil
}

// Save writes the profile to <dir>/<name>.bin, creating the directory.
func (p *Profile) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.New(err).
			Component("speaker").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}

	path := filepath.Join(dir, p.Name+".bin")
	if err := os.WriteFile(path, p.Marshal(), 0o644); err != nil {
		return "", errors.New(err).
			Component("speaker").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return path, nil
}

// LoadProfile reads a single profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("speaker").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return UnmarshalProfile(data)
}

// LoadAllProfiles reads every .bin profile in dir. A missing directory yields
// an empty set; unreadable profiles are skipped with a warning.
func LoadAllProfiles(dir string) ([]*Profile, error) {
	log := logging.ForService("speaker")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(err).
			Component("speaker").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}

	var profiles []*Profile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".bin") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		profile, err := LoadProfile(path)
		if err != nil {
			log.Warn("failed to load speaker profile", "path", path, "error", err)
			continue
		}
		profiles = append(profiles, profile)
	}

	return profiles, nil
}

// ListProfiles returns the sorted names of all enrolled profiles.
func ListProfiles(dir string) ([]string, error) {
	profiles, err := LoadAllProfiles(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names, nil
}

// RemoveProfile deletes an enrolled profile by name.
func RemoveProfile(dir, name string) error {
	path := filepath.Join(dir, name+".bin")
	if _, err := os.Stat(path); err != nil {
		return errors.Newf("no profile found for %q", name).
			Component("speaker").
			Category(errors.CategorySpeaker).
			Build()
	}
	if err := os.Remove(path); err != nil {
		return errors.New(err).
			Component("speaker").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}
