package mapbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		message string
		fatal   bool
	}{
		{"401 Unauthorized", true},
		{"HTTP 403 Forbidden", true},
		{"NetworkError when attempting to fetch resource", true},
		{"connection refused", true},
		{"missing image: foo", false},
		{"style warning: layer order", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.message))
		})
	}
}
