package domain

// AttributeMapper copies attributes from a source map into a target scope.
// Implementations must copy values rather than alias them.
type AttributeMapper interface {
	MapAttributes(rc RequestContext, source map[string]any, target Scope) error
}

// MapperFunc adapts a function to AttributeMapper.
type MapperFunc func(rc RequestContext, source map[string]any, target Scope) error

func (f MapperFunc) MapAttributes(rc RequestContext, source map[string]any, target Scope) error {
	return f(rc, source, target)
}
