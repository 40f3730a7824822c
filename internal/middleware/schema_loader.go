package middleware

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	contextutils "derjachat/internal/utils"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// SchemaLoader holds compiled JSON schemas and the routes whose request
// bodies they describe
type SchemaLoader struct {
	schemas map[string]*gojsonschema.Schema
	routes  map[string]string
}

// NewSchemaLoader creates an empty schema loader
func NewSchemaLoader() *SchemaLoader {
	return &SchemaLoader{
		schemas: make(map[string]*gojsonschema.Schema),
		routes:  make(map[string]string),
	}
}

// LoadEmbeddedSchemas compiles every schema shipped with the binary. A schema
// is named after its file, so schemas/chat_request.json becomes "chat_request".
func LoadEmbeddedSchemas() (*SchemaLoader, error) {
	sl := NewSchemaLoader()

	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list embedded schemas")
	}
	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to read schema %s", entry.Name())
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		if err := sl.AddSchema(name, string(data)); err != nil {
			return nil, err
		}
	}
	return sl, nil
}

// AddSchema compiles and registers a schema under name
func (sl *SchemaLoader) AddSchema(name, schemaJSON string) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to compile schema %s: %v", name, err)
	}
	sl.schemas[name] = schema
	return nil
}

// Route binds the request body of method+path to a registered schema
func (sl *SchemaLoader) Route(method, path, schemaName string) {
	sl.routes[method+" "+path] = schemaName
}

// SchemaFor returns the schema name for a route, or "" when it has none
func (sl *SchemaLoader) SchemaFor(method, path string) string {
	return sl.routes[method+" "+path]
}

// SchemaNames lists the registered schemas
func (sl *SchemaLoader) SchemaNames() []string {
	names := make([]string, 0, len(sl.schemas))
	for name := range sl.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemaViolation is one field that does not match the schema
type SchemaViolation struct {
	Field       string
	Rule        string
	Description string
}

// ValidateJSON checks raw JSON against the named schema. It returns the
// violations, and an error only when validation itself could not run.
func (sl *SchemaLoader) ValidateJSON(raw []byte, schemaName string) ([]SchemaViolation, error) {
	schema, ok := sl.schemas[schemaName]
	if !ok {
		return nil, contextutils.ErrorWithContextf("schema %s not found", schemaName)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "body is not valid JSON: %v", err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]SchemaViolation, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, SchemaViolation{
			Field:       re.Field(),
			Rule:        re.Type(),
			Description: re.Description(),
		})
	}
	return violations, nil
}

func (v SchemaViolation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Description)
}
