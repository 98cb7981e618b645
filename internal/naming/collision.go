package naming

import (
	"log/slog"
	"strconv"
)

// namespace maps each handed-out name to the source that claimed it.
type namespace map[string]string

// CollisionResolver hands out unique names within each GraphQL namespace
// of one schema build: type names, the fields of each type, and root
// fields. A second source asking for a taken name gets a numeric suffix;
// the same source asking again gets the name it was given before.
type CollisionResolver struct {
	types  namespace
	roots  namespace
	fields map[string]namespace
	logger *slog.Logger
}

// NewCollisionResolver returns an empty resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		types:  namespace{},
		roots:  namespace{},
		fields: map[string]namespace{},
		logger: logger,
	}
}

// RegisterType claims a type name for tableName.
func (c *CollisionResolver) RegisterType(graphqlName, tableName string) string {
	return c.claim(c.types, graphqlName, "table:"+tableName)
}

// RegisterField claims fieldName on typeName for source.
func (c *CollisionResolver) RegisterField(typeName, fieldName, source string) string {
	ns, ok := c.fields[typeName]
	if !ok {
		ns = namespace{}
		c.fields[typeName] = ns
	}
	return c.claim(ns, fieldName, source)
}

// RegisterRoot claims a Query or Mutation field name for source.
func (c *CollisionResolver) RegisterRoot(fieldName, source string) string {
	return c.claim(c.roots, fieldName, source)
}

func (c *CollisionResolver) claim(ns namespace, name, source string) string {
	candidate := name
	for n := 2; ; n++ {
		owner, taken := ns[candidate]
		if !taken {
			ns[candidate] = source
			if candidate != name {
				c.logger.Warn("naming collision detected, applying suffix",
					slog.String("name", name),
					slog.String("renamed", candidate),
					slog.String("existing_source", ns[name]),
					slog.String("new_source", source),
				)
			}
			return candidate
		}
		if owner == source {
			return candidate
		}
		candidate = name + strconv.Itoa(n)
	}
}
