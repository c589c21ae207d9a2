package openapi

import (
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
)

// OperationBuilder is nil-safe so callers can document routes without checking
// whether a document is configured.
type OperationBuilder struct {
	doc       *Document
	method    string
	path      string
	operation *openapi3.Operation
}

func (b *OperationBuilder) Summary(summary string) *OperationBuilder {
	if b != nil {
		b.operation.Summary = summary
	}
	return b
}

func (b *OperationBuilder) Description(description string) *OperationBuilder {
	if b != nil {
		b.operation.Description = description
	}
	return b
}

func (b *OperationBuilder) Tags(tags ...string) *OperationBuilder {
	if b != nil {
		b.operation.Tags = append(b.operation.Tags, tags...)
	}
	return b
}

func (b *OperationBuilder) Body(example any, description string) *OperationBuilder {
	if b == nil {
		return b
	}
	b.operation.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithDescription(description).
			WithRequired(true).
			WithJSONSchemaRef(b.doc.schemaFor(example)),
	}
	return b
}

func (b *OperationBuilder) Response(status int, example any, description string) *OperationBuilder {
	if b == nil {
		return b
	}
	response := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		response = response.WithJSONSchemaRef(b.doc.schemaFor(example))
	}
	b.operation.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: response})
	return b
}

// RequiresSession marks the operation as needing the session cookie.
func (b *OperationBuilder) RequiresSession() *OperationBuilder {
	if b == nil {
		return b
	}
	if b.operation.Security == nil {
		b.operation.Security = openapi3.NewSecurityRequirements()
	}
	b.operation.Security.With(openapi3.NewSecurityRequirement().Authenticate(sessionCookieScheme))
	return b
}

func (b *OperationBuilder) Build() {
	if b == nil {
		return
	}
	b.doc.addOperation(b.method, b.path, b.operation)
}
