package workflow

import (
	"fmt"
	"strings"

	"persona/internal/domain"
)

// Bindings names the template nodes the orchestrator writes into and reads
// results from.
type Bindings struct {
	PositivePrompt []string
	NegativePrompt []string
	Seed           []string
	ImageInput     string
	Output         string
}

// DefaultBindings matches the bundled persona workflow.
func DefaultBindings() Bindings {
	return Bindings{
		PositivePrompt: []string{"25", "34"},
		NegativePrompt: []string{"7", "24"},
		Seed:           []string{"19", "28"},
		ImageInput:     "1",
		Output:         "39",
	}
}

// NodeIDs returns every node id the bindings reference, without duplicates.
func (b Bindings) NodeIDs() []string {
	seen := map[string]struct{}{}
	var ids []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, group := range [][]string{b.PositivePrompt, b.NegativePrompt, b.Seed} {
		for _, id := range group {
			add(id)
		}
	}
	add(b.ImageInput)
	add(b.Output)
	return ids
}

// Params are the per-job values bound into a template.
type Params struct {
	Prompt   string
	Negative string
	Seed     uint32
	Image    domain.AssetHandle
}

// Bind returns a deep copy of tpl with params written into the bound nodes.
// tpl itself is never modified. Every seed node receives the same seed.
func Bind(tpl Template, b Bindings, p Params) (Template, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return nil, fmt.Errorf("workflow: prompt is required")
	}
	if strings.TrimSpace(string(p.Image)) == "" {
		return nil, fmt.Errorf("workflow: image handle is required")
	}
	out, err := tpl.Clone()
	if err != nil {
		return nil, err
	}
	for _, id := range b.PositivePrompt {
		if err := out.setInput(id, "text", p.Prompt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedTemplate, err)
		}
	}
	for _, id := range b.NegativePrompt {
		if err := out.setInput(id, "text", p.Negative); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedTemplate, err)
		}
	}
	for _, id := range b.Seed {
		if err := out.setInput(id, "noise_seed", p.Seed); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedTemplate, err)
		}
	}
	if err := out.setInput(b.ImageInput, "image", string(p.Image)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedTemplate, err)
	}
	return out, nil
}
