// Package loam reads machine definitions from a directory of documents
// (Markdown with frontmatter, JSON or YAML) through the Loam library.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/typeref"
)

// MachineDocument is the metadata of one machine document.
type MachineDocument struct {
	ID           string `json:"id" mapstructure:"id"`
	Object       string `json:"object" mapstructure:"object"`
	InitialState string `json:"initial_state" mapstructure:"initial_state"`
}

// Catalog lists the machines defined in a Loam repository.
type Catalog struct {
	Repo *loam.TypedRepository[MachineDocument]
}

// New creates a catalog over an existing typed repository.
func New(repo *loam.TypedRepository[MachineDocument]) *Catalog {
	return &Catalog{Repo: repo}
}

// Open opens dir read-only. The catalog never writes documents.
func Open(dir string) (*Catalog, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[MachineDocument](repo)), nil
}

// Machines returns one config per document, sorted by ID. The ID comes from
// the metadata or else the file name without its extension. Two documents
// resolving to the same ID are an error.
func (c *Catalog) Machines(ctx context.Context) ([]domain.MachineConfig, error) {
	docs, err := c.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	out := make([]domain.MachineConfig, 0, len(docs))
	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: machine '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID

		out = append(out, domain.MachineConfig{
			ID:           id,
			Object:       doc.Data.Object,
			InitialState: typeref.Parse(strings.TrimSpace(doc.Data.InitialState)),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}
