package mw

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// OperationOption is a function that modifies an operation.
type OperationOption func(*huma.Operation)

// WithAdmin marks the operation as requiring operator access.
func WithAdmin() OperationOption {
	return func(op *huma.Operation) {
		if op.Metadata == nil {
			op.Metadata = make(map[string]any)
		}
		op.Metadata[string(MetaKeyRequireAdmin)] = true
	}
}

// WithTags adds tags to the operation.
func WithTags(tags ...string) OperationOption {
	return func(op *huma.Operation) {
		op.Tags = append(op.Tags, tags...)
	}
}

// WithSummary sets the operation summary.
func WithSummary(summary string) OperationOption {
	return func(op *huma.Operation) {
		op.Summary = summary
	}
}

// WithDescription sets the operation description.
func WithDescription(desc string) OperationOption {
	return func(op *huma.Operation) {
		op.Description = desc
	}
}

// WithOperationID sets a custom operation ID.
func WithOperationID(id string) OperationOption {
	return func(op *huma.Operation) {
		op.OperationID = id
	}
}

// WithHidden hides the operation from OpenAPI documentation.
func WithHidden() OperationOption {
	return func(op *huma.Operation) {
		op.Hidden = true
	}
}

// PublicGet registers a public GET endpoint (no auth required).
func PublicGet[I, O any](api huma.API, path string, handler func(ctx context.Context, input *I) (*O, error), opts ...OperationOption) {
	register(api, http.MethodGet, path, nil, handler, opts)
}

// PublicPost registers a public POST endpoint (no auth required).
func PublicPost[I, O any](api huma.API, path string, handler func(ctx context.Context, input *I) (*O, error), opts ...OperationOption) {
	register(api, http.MethodPost, path, nil, handler, opts)
}

// ProtectedGet registers a GET endpoint that requires bearer auth.
func ProtectedGet[I, O any](api huma.API, path string, handler func(ctx context.Context, input *I) (*O, error), opts ...OperationOption) {
	register(api, http.MethodGet, path, bearerSecurity(), handler, opts)
}

// ProtectedPost registers a POST endpoint that requires bearer auth.
func ProtectedPost[I, O any](api huma.API, path string, handler func(ctx context.Context, input *I) (*O, error), opts ...OperationOption) {
	register(api, http.MethodPost, path, bearerSecurity(), handler, opts)
}

// ProtectedPut registers a PUT endpoint that requires bearer auth.
func ProtectedPut[I, O any](api huma.API, path string, handler func(ctx context.Context, input *I) (*O, error), opts ...OperationOption) {
	register(api, http.MethodPut, path, bearerSecurity(), handler, opts)
}

// ProtectedDelete registers a DELETE endpoint that requires bearer auth.
func ProtectedDelete[I, O any](api huma.API, path string, handler func(ctx context.Context, input *I) (*O, error), opts ...OperationOption) {
	register(api, http.MethodDelete, path, bearerSecurity(), handler, opts)
}

// HiddenGet registers a GET endpoint that won't appear in OpenAPI docs.
// Used for internal endpoints like K8s probes.
func HiddenGet[I, O any](api huma.API, path string, handler func(ctx context.Context, input *I) (*O, error)) {
	huma.Register(api, huma.Operation{
		Method: http.MethodGet,
		Path:   path,
		Hidden: true,
	}, handler)
}

func bearerSecurity() []map[string][]string {
	return []map[string][]string{{SecurityScheme: {}}}
}

func register[I, O any](api huma.API, method, path string, security []map[string][]string, handler func(ctx context.Context, input *I) (*O, error), opts []OperationOption) {
	op := huma.Operation{
		Method:   method,
		Path:     path,
		Security: security,
	}
	for _, opt := range opts {
		opt(&op)
	}
	huma.Register(api, op, handler)
}
