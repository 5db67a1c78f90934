// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "score": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

func TestValidate(t *testing.T) {
	s, err := Compile("test.json", []byte(testSchema))
	require.NoError(t, err)

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "valid", doc: `{"name":"x","score":0.5}`},
		{name: "missing required", doc: `{"score":0.5}`, wantErr: true},
		{name: "out of range", doc: `{"name":"x","score":1.5}`, wantErr: true},
		{name: "not json", doc: `{name}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(s, []byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCompileInvalid(t *testing.T) {
	_, err := Compile("bad.json", []byte(`{"type": 5}`))
	assert.Error(t, err)

	assert.Panics(t, func() { MustCompile("bad.json", []byte(`not json`)) })
}
