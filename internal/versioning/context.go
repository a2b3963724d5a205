package versioning

import "context"

type contextKeyDescriptor struct{}

// NewContext attaches the resolved descriptor to ctx.
func NewContext(ctx context.Context, d Descriptor) context.Context {
	return context.WithValue(ctx, contextKeyDescriptor{}, d)
}

// FromContext returns the descriptor resolved for the request.
func FromContext(ctx context.Context) (Descriptor, bool) {
	d, ok := ctx.Value(contextKeyDescriptor{}).(Descriptor)
	return d, ok
}

// FeatureEnabled reports whether the request's version enables feature.
func FeatureEnabled(ctx context.Context, feature string) bool {
	d, ok := FromContext(ctx)
	return ok && d.HasFeature(feature)
}
