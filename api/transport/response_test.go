package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
)

func TestEnvelope_String(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want string
	}{
		{
			name: "success",
			env:  NewSuccess(map[string]int{"total": 2}, nil),
			want: `{"status":"success","data":{"total":2}}`,
		},
		{
			name: "error",
			env:  NewError(string(domain.ErrCodeNotFound), "task not found", nil),
			want: `{"status":"error","code":"NOT_FOUND","error":{"message":"task not found"}}`,
		},
		{
			name: "validation",
			env: NewValidationError(domain.NewValidationError(
				domain.FieldError{Field: domain.FieldTitle, Message: "Title must be at least 3 characters."},
			)),
			want: `{"status":"error","code":"INVALID","error":{"message":"validation failed","fields":[{"field":"title","message":"Title must be at least 3 characters."}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, tt.env.String())
		})
	}
}

func TestNewValidationError_CopiesFields(t *testing.T) {
	vErr := domain.NewValidationError(domain.FieldError{Field: domain.FieldTitle, Message: "short"})
	env := NewValidationError(vErr)
	vErr.Fields[0].Message = "changed"

	var decoded struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(env.String()), &decoded))
	require.Len(t, decoded.Error.Fields, 1)
	assert.Equal(t, "short", decoded.Error.Fields[0].Message)
}
