package validation

import (
	"bytes"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sluiceio/sluice/pkg/types"
	"github.com/tidwall/gjson"
)

// CompileSchema compiles a raw JSON schema for element validation.
// The schema may refer to itself through an inline $id.
func CompileSchema(schema []byte) (*jsonschema.Schema, error) {
	if !gjson.ValidBytes(schema) {
		return nil, fmt.Errorf("schema is not valid JSON")
	}

	compiler := jsonschema.NewCompiler()
	// Allow schemas with $id to refer to themselves
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if url == "inline://schema" {
			return io.NopCloser(bytes.NewReader(schema)), nil
		}
		return nil, fmt.Errorf("unsupported schema ref: %s", url)
	}
	if err := compiler.AddResource("inline://schema", bytes.NewReader(schema)); err != nil {
		return nil, err
	}
	return compiler.Compile("inline://schema")
}

// ValidateElement checks a single element against a compiled schema.
// Absent elements fail; they are holes, not values.
func ValidateElement(schema *jsonschema.Schema, element types.NullableAny) error {
	if schema == nil {
		return nil
	}
	if element.IsNil() {
		return fmt.Errorf("element is absent")
	}
	return schema.Validate(element.Get())
}
