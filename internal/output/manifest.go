package output

import (
	"context"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spherical/pdf2md/internal/domain"
)

// Manifest summarises one conversion run. It is written next to the Markdown
// files as {base}.manifest.yaml when enabled.
type Manifest struct {
	RunID       string            `yaml:"run_id"`
	Document    string            `yaml:"document"`
	Model       string            `yaml:"model,omitempty"`
	GeneratedAt time.Time         `yaml:"generated_at"`
	DPI         float64           `yaml:"dpi"`
	ProbeDPI    float64           `yaml:"probe_dpi"`
	Budget      int               `yaml:"budget"`
	ProbeCost   int               `yaml:"probe_cost"`
	Split       bool              `yaml:"split"`
	PageCount   int               `yaml:"page_count"`
	Sections    []ManifestSection `yaml:"sections"`
}

// ManifestSection records one section and the file it produced
type ManifestSection struct {
	StartPage int    `yaml:"start_page"` // 1-based
	EndPage   int    `yaml:"end_page"`   // 1-based
	Cost      int    `yaml:"cost"`
	File      string `yaml:"file"`
}

// NewManifestSection converts a section and its written path to the 1-based
// manifest form.
func NewManifestSection(s domain.Section, path string) ManifestSection {
	return ManifestSection{
		StartPage: s.StartPage + 1,
		EndPage:   s.EndPage + 1,
		Cost:      s.Cost,
		File:      path,
	}
}

// ManifestName returns the manifest file name for a document base name
func ManifestName(baseName string) string {
	return baseName + ".manifest.yaml"
}

// WriteManifest marshals m and stores it beside the section files
func (w *Writer) WriteManifest(ctx context.Context, m Manifest) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", domain.WriteError("cannot encode manifest", err)
	}
	return w.Write(ctx, ManifestName(BaseName(m.Document)), string(data))
}
