package resolve

import (
	"fmt"
	"sort"

	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/preprocess"
)

// LinkResolver wraps the target operation's resolver with argument values
// evaluated from the link declaration. Declared parameters are computed from
// the parent call's metadata and override caller-supplied arguments of the
// same name; the parent result stays the source so credential material keeps
// flowing.
func (b *Builder) LinkResolver(link *preprocess.Link, target graph.ResolveFunc) graph.ResolveFunc {
	return func(params graph.ResolveParams) (interface{}, error) {
		parent := graph.CarrierFrom(params.Source)

		args := make(map[string]interface{}, len(params.Args)+len(link.Parameters))
		for name, value := range params.Args {
			args[name] = value
		}

		names := make([]string, 0, len(link.Parameters))
		for name := range link.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			raw := link.Parameters[name]
			expr, ok := raw.(string)
			if !ok {
				args[b.argName(name)] = raw
				continue
			}
			value, err := Evaluate(expr, parent)
			if err != nil {
				return nil, fmt.Errorf("link %q: %w", link.Name, err)
			}
			args[b.argName(name)] = value
		}

		return target(graph.ResolveParams{
			Ctx:    params.Ctx,
			Source: params.Source,
			Args:   args,
		})
	}
}
