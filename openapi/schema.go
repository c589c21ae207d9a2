package openapi

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

var timeType = reflect.TypeOf(time.Time{})

// schemaGenerator derives schemas from example values. Named structs become
// components referenced by name.
type schemaGenerator struct {
	components openapi3.Schemas
	names      map[reflect.Type]string
}

func newSchemaGenerator(components openapi3.Schemas) *schemaGenerator {
	return &schemaGenerator{
		components: components,
		names:      make(map[reflect.Type]string),
	}
}

func (g *schemaGenerator) generate(example any) *openapi3.SchemaRef {
	if example == nil {
		return openapi3.NewObjectSchema().NewRef()
	}
	return g.fromType(reflect.TypeOf(example))
}

func (g *schemaGenerator) fromType(t reflect.Type) *openapi3.SchemaRef {
	if t.Kind() == reflect.Pointer {
		ref := g.fromType(t.Elem())
		if ref.Ref != "" {
			return openapi3.NewSchemaRef("", &openapi3.Schema{AllOf: openapi3.SchemaRefs{ref}, Nullable: true})
		}
		ref.Value.Nullable = true
		return ref
	}

	switch t.Kind() {
	case reflect.String:
		return openapi3.NewStringSchema().NewRef()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return openapi3.NewIntegerSchema().NewRef()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema().WithMin(0).NewRef()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema().NewRef()
	case reflect.Bool:
		return openapi3.NewBoolSchema().NewRef()
	case reflect.Slice, reflect.Array:
		schema := openapi3.NewArraySchema()
		schema.Items = g.fromType(t.Elem())
		return schema.NewRef()
	case reflect.Map:
		schema := openapi3.NewObjectSchema()
		schema.AdditionalProperties = openapi3.AdditionalProperties{Schema: g.fromType(t.Elem())}
		return schema.NewRef()
	case reflect.Struct:
		return g.fromStruct(t)
	default:
		return openapi3.NewObjectSchema().NewRef()
	}
}

func (g *schemaGenerator) fromStruct(t reflect.Type) *openapi3.SchemaRef {
	if t == timeType {
		return openapi3.NewDateTimeSchema().NewRef()
	}
	if t.Name() == "" {
		return g.buildStruct(t).NewRef()
	}

	if name, ok := g.names[t]; ok {
		return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
	}

	name := g.uniqueName(t.Name())
	g.names[t] = name
	g.components[name] = g.buildStruct(t).NewRef()
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func (g *schemaGenerator) uniqueName(base string) string {
	name := base
	for i := 2; ; i++ {
		if _, taken := g.components[name]; !taken {
			return name
		}
		name = base + strconv.Itoa(i)
	}
}

func (g *schemaGenerator) buildStruct(t reflect.Type) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = field.Name
		}

		prop := g.fromType(field.Type)
		if doc := field.Tag.Get("doc"); doc != "" && prop.Value != nil {
			prop.Value.Description = doc
		}
		schema.WithPropertyRef(name, prop)

		if !strings.Contains(opts, "omitempty") {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}
