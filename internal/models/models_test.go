package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensionUnmarshal(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		want    Dimension
		wantErr bool
	}{
		{name: "string", body: `{"width":"12"}`, want: "12"},
		{name: "string_with_units", body: `{"width":"12 ft"}`, want: "12 ft"},
		{name: "integer", body: `{"width":12}`, want: "12"},
		{name: "decimal_kept_verbatim", body: `{"width":12.50}`, want: "12.50"},
		{name: "null", body: `{"width":null}`, want: ""},
		{name: "bool", body: `{"width":true}`, wantErr: true},
		{name: "object", body: `{"width":{"v":1}}`, wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var req SaveDesignRequest
			err := json.Unmarshal([]byte(testCase.body), &req)
			if testCase.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.want, req.Width)
		})
	}
}

func TestDesignMarshalKeepsDimensionsAsStrings(t *testing.T) {
	body, err := json.Marshal(Design{ID: 1, UserID: 2, Width: "12", Length: "15.0"})
	require.NoError(t, err)

	assert.Contains(t, string(body), `"width":"12"`)
	assert.Contains(t, string(body), `"length":"15.0"`)
}
