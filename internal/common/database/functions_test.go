package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateConnectionString(t *testing.T) {
	tests := map[string]struct {
		values   map[string]string
		expected string
	}{
		"empty": {
			values:   map[string]string{},
			expected: "",
		},
		"sorted keys": {
			values:   map[string]string{"user": "launchpad", "host": "localhost", "port": "5432"},
			expected: "host='localhost' port='5432' user='launchpad'",
		},
		"escaped values": {
			values:   map[string]string{"password": `it's\secret`},
			expected: `password='it\'s\\secret'`,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CreateConnectionString(tc.values))
		})
	}
}
