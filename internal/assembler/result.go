package assembler

import "tidb-nested-graphql/internal/relation"

// ResultNode is one re-read row with the relations requested below it.
// Values are keyed by GraphQL field name.
type ResultNode struct {
	Table     string
	Values    map[string]any
	Relations map[string]*Related
}

// Related holds the rows reached through one relation.
type Related struct {
	Direction relation.Direction
	Nodes     []*ResultNode
}

// Map renders the node for GraphQL: reverse relations become
// {"nodes": [...]} connections, forward relations a single object or nil.
func (n *ResultNode) Map() map[string]any {
	if n == nil {
		return nil
	}
	out := make(map[string]any, len(n.Values)+len(n.Relations))
	for field, v := range n.Values {
		out[field] = v
	}
	for field, rel := range n.Relations {
		if rel.Direction == relation.Reverse {
			nodes := make([]any, 0, len(rel.Nodes))
			for _, child := range rel.Nodes {
				nodes = append(nodes, child.Map())
			}
			out[field] = map[string]any{"nodes": nodes}
			continue
		}
		if len(rel.Nodes) == 0 {
			out[field] = nil
		} else {
			out[field] = rel.Nodes[0].Map()
		}
	}
	return out
}
