package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// ToJSONSchema reflects t into an inline JSON schema.
func ToJSONSchema[T any](t T) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(t)

	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "marshal schema", err)
	}

	return string(raw), nil
}

// Schema is the JSON schema of the configuration file.
func Schema() (string, error) {
	return ToJSONSchema(&Config{}) //nolint:exhaustruct // empty config for schema generation
}
