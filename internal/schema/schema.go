// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema compiles JSON Schemas and validates raw JSON documents
// against them.
package schema

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Compile compiles a JSON Schema document registered under name.
func Compile(name string, raw []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, eris.Wrapf(err, "schema: load %s", name)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: compile %s", name)
	}
	return s, nil
}

// MustCompile is like Compile but panics on error. It is meant for schemas
// embedded in the binary.
func MustCompile(name string, raw []byte) *jsonschema.Schema {
	s, err := Compile(name, raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate decodes data and validates it against s.
func Validate(s *jsonschema.Schema, data []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return eris.Wrap(err, "schema: decode document")
	}
	if err := s.Validate(doc); err != nil {
		return eris.Wrap(err, "schema: document does not match")
	}
	return nil
}
