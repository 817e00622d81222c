package model

import (
	"encoding/json"

	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
	"github.com/invopop/jsonschema"
)

// GenerateJSONSchema reflects T into an inlined JSON schema with additional
// properties disallowed, the shape structured-output APIs expect.
func GenerateJSONSchema[T any]() (JSONSchema, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var value T
	schema := reflector.Reflect(value)

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	var schemaMap map[string]any
	err = json.Unmarshal(schemaJSON, &schemaMap)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	// Strict mode on some providers rejects the $schema and $id keywords.
	delete(schemaMap, "$schema")
	delete(schemaMap, "$id")

	return schemaMap, nil
}

// GenerateJSONSchemaText is GenerateJSONSchema rendered as indented JSON, for
// providers that take the schema inside the prompt.
func GenerateJSONSchemaText[T any]() (string, error) {
	schema, err := GenerateJSONSchema[T]()
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	return string(data), nil
}
