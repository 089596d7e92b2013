package genclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no fence", in: `{"a":1}`, want: `{"a":1}`},
		{name: "plain fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "json language tag", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "surrounding whitespace", in: "  ```json\n{\"a\":1}\n```  ", want: `{"a":1}`},
		{name: "unclosed fence", in: "```json\n{\"a\":1}", want: `{"a":1}`},
		{name: "multiline body", in: "```json\n{\n  \"a\": 1\n}\n```", want: "{\n  \"a\": 1\n}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSONBlock(tt.in))
		})
	}
}
