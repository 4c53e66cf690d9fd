package obs

import (
	"context"
	"sort"
	"sync"
)

// routePatternKey is the context key storing matched route pattern.
type routePatternKey struct{}

type annotationsKey struct{}

type annotations struct {
	mu     sync.Mutex
	fields map[string]string
}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}

// withAnnotations returns the annotation set already on ctx, or attaches a
// new one, so the tracing and logging middleware observe the same fields.
func withAnnotations(ctx context.Context) (context.Context, *annotations) {
	if a, ok := ctx.Value(annotationsKey{}).(*annotations); ok {
		return ctx, a
	}
	a := &annotations{fields: map[string]string{}}
	return context.WithValue(ctx, annotationsKey{}, a), a
}

// Annotate attaches a field to the request log line emitted by RequestLogger.
// Inner middleware uses it to surface identities resolved after logging starts.
func Annotate(ctx context.Context, key, value string) {
	if ctx == nil || value == "" {
		return
	}
	a, ok := ctx.Value(annotationsKey{}).(*annotations)
	if !ok {
		return
	}
	a.mu.Lock()
	a.fields[key] = value
	a.mu.Unlock()
}

func (a *annotations) get(key string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fields[key]
}

func (a *annotations) sorted() [][2]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([][2]string, 0, len(a.fields))
	for k, v := range a.fields {
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
