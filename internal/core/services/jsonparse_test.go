package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeModelJSON(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	tests := []struct {
		name string
		text string
		want payload
	}{
		{name: "bare object", text: `{"name": "pore", "count": 2}`, want: payload{"pore", 2}},
		{name: "fenced with language", text: "```json\n{\"name\": \"pore\", \"count\": 2}\n```", want: payload{"pore", 2}},
		{name: "fenced without language", text: "```\n{\"name\": \"channel\"}\n```", want: payload{Name: "channel"}},
		{name: "surrounded by prose", text: "Sure! Here it is: {\"count\": 7} Hope that helps.", want: payload{Count: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got payload
			require.NoError(t, decodeModelJSON(tt.text, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeModelJSON_Errors(t *testing.T) {
	var v map[string]any
	assert.ErrorIs(t, decodeModelJSON("", &v), errNoJSON)
	assert.ErrorIs(t, decodeModelJSON("```\n```", &v), errNoJSON)
	assert.ErrorIs(t, decodeModelJSON("no structure at all", &v), errNoJSON)
	assert.Error(t, decodeModelJSON("{not: json}", &v))
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, "x = 1", stripFence("```python\nx = 1\n```"))
	assert.Equal(t, "plain", stripFence("plain"))
}
