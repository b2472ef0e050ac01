package surreal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Valid simple", "messages", false},
		{"Valid with underscore", "user_id", false},
		{"Valid with numbers", "field1", false},
		{"Valid with mixed case", "UserId", false},
		{"Invalid space", "user id", true},
		{"Invalid semicolon", "user;id", true},
		{"Invalid dash", "user-id", true},
		{"Invalid special char", "user$", true},
		{"Invalid SQL injection", "messages; DROP TABLE messages", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateIdentifier(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildWhereClause(t *testing.T) {
	tests := []struct {
		name    string
		filter  map[string]interface{}
		want    string
		wantErr bool
	}{
		{"Empty filter", map[string]interface{}{}, "true", false},
		{"Single filter", map[string]interface{}{"user_id": "123"}, "user_id = $user_id", false},
		{"Sorted keys", map[string]interface{}{"user_id": "1", "interaction_type": "message"}, "interaction_type = $interaction_type AND user_id = $user_id", false},
		{"Invalid key", map[string]interface{}{"user id": "123"}, "", true},
		{"Injection key", map[string]interface{}{"id; --": "123"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildWhereClause(tt.filter)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "wss://db.example.com/rpc", NormalizeHost("db.example.com"))
	assert.Equal(t, "ws://localhost:8000/rpc", NormalizeHost("ws://localhost:8000/rpc"))
	assert.Equal(t, "", NormalizeHost(""))
}

func TestToRows(t *testing.T) {
	rows, err := toRows([]interface{}{
		map[string]interface{}{"user_id": "a"},
		map[interface{}]interface{}{"user_id": "b"},
		"skipped",
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1]["user_id"])

	rows, err = toRows(nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = toRows(42)
	assert.Error(t, err)
}
