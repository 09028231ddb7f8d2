// Package planhcl loads execution plans authored in HCL. It is an
// alternative front end to the JSON plan format: step blocks declare the
// graph, depends_on lists become edges, and the seed attribute pre-populates
// the variable store.
package planhcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stepgrid/internal/ctxlog"
	"github.com/vk/stepgrid/internal/plan"
)

type stepBlock struct {
	ID          string   `hcl:"id,label"`
	Agent       string   `hcl:"agent"`
	Description string   `hcl:"description,optional"`
	Prompt      string   `hcl:"prompt,optional"`
	Reads       []string `hcl:"reads,optional"`
	Writes      []string `hcl:"writes,optional"`
	DependsOn   []string `hcl:"depends_on,optional"`
}

type planFile struct {
	Query string      `hcl:"query,optional"`
	Seed  *cty.Value  `hcl:"seed,optional"`
	Steps []stepBlock `hcl:"step,block"`
}

// Load parses an HCL plan file into the common plan model. Steps with no
// depends_on hang off the synthetic root.
func Load(ctx context.Context, path string) (*plan.Plan, error) {
	logger := ctxlog.FromContext(ctx)

	var file planFile
	if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
		return nil, fmt.Errorf("planhcl: decoding %q: %w", path, err)
	}

	p := &plan.Plan{Query: file.Query}
	for _, s := range file.Steps {
		p.Steps = append(p.Steps, plan.Step{
			ID:          s.ID,
			Agent:       s.Agent,
			Description: s.Description,
			AgentPrompt: s.Prompt,
			Reads:       s.Reads,
			Writes:      s.Writes,
		})
		if len(s.DependsOn) == 0 {
			p.Edges = append(p.Edges, plan.Edge{Source: plan.RootID, Target: s.ID})
			continue
		}
		for _, dep := range s.DependsOn {
			p.Edges = append(p.Edges, plan.Edge{Source: dep, Target: s.ID})
		}
	}

	if file.Seed != nil && !file.Seed.IsNull() {
		seed, err := seedValues(*file.Seed)
		if err != nil {
			return nil, fmt.Errorf("planhcl: %q: %w", path, err)
		}
		p.Seed = seed
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("planhcl: %q: %w", path, err)
	}
	logger.Debug("HCL plan loaded.", "path", path, "steps", len(p.Steps), "edges", len(p.Edges))
	return p, nil
}

// seedValues converts the seed object into native Go values.
func seedValues(v cty.Value) (map[string]any, error) {
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, fmt.Errorf("seed must be an object, got %s", v.Type().FriendlyName())
	}
	seed := make(map[string]any, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		native, err := ctyToNative(ev)
		if err != nil {
			return nil, fmt.Errorf("seed value %q: %w", k.AsString(), err)
		}
		seed[k.AsString()] = native
	}
	return seed, nil
}

// ctyToNative lowers a cty value to the any-typed shape the variable store
// holds, mirroring what a JSON decode would produce.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	t := v.Type()
	switch {
	case t == cty.String:
		return v.AsString(), nil
	case t == cty.Bool:
		return v.True(), nil
	case t == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f, nil
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			native, err := ctyToNative(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil
	case t.IsObjectType() || t.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			native, err := ctyToNative(ev)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = native
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type %s", t.FriendlyName())
}
