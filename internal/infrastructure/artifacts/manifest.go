package artifacts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultManifestName = "manifest.yaml"

// Manifest lists the files that make up one artifact set. Paths are keys
// relative to the artifact directory.
type Manifest struct {
	Properties string            `yaml:"properties"`
	Locations  string            `yaml:"locations,omitempty"`
	Similarity []SimilarityEntry `yaml:"similarity"`
	Distances  DistanceEntry     `yaml:"distances"`
}

type SimilarityEntry struct {
	Name   string   `yaml:"name,omitempty"`
	Path   string   `yaml:"path"`
	Weight *float64 `yaml:"weight,omitempty"`
}

type DistanceEntry struct {
	Path  string `yaml:"path"`
	Sheet string `yaml:"sheet,omitempty"`
}

// DefaultWeight returns the configured weight, or 1 when the manifest omits it.
func (e SimilarityEntry) DefaultWeight() float64 {
	if e.Weight == nil {
		return 1
	}
	return *e.Weight
}

func ParseManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return Manifest{}, fmt.Errorf("manifest is empty")
		}
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func (m Manifest) Validate() error {
	var problems []string
	if strings.TrimSpace(m.Properties) == "" {
		problems = append(problems, "properties path is required")
	}
	if len(m.Similarity) == 0 {
		problems = append(problems, "at least one similarity matrix is required")
	}
	names := make(map[string]int, len(m.Similarity))
	for i, entry := range m.Similarity {
		if strings.TrimSpace(entry.Path) == "" {
			problems = append(problems, fmt.Sprintf("similarity[%d]: path is required", i))
		}
		if entry.Name == "" {
			continue
		}
		if prev, ok := names[entry.Name]; ok {
			problems = append(problems, fmt.Sprintf("similarity[%d]: name %q already used by similarity[%d]", i, entry.Name, prev))
			continue
		}
		names[entry.Name] = i
	}
	if strings.TrimSpace(m.Distances.Path) == "" {
		problems = append(problems, "distances path is required")
	} else if !isSpreadsheet(m.Distances.Path) && strings.TrimSpace(m.Locations) == "" {
		problems = append(problems, "locations path is required unless distances are a spreadsheet")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid manifest: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (m Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}
