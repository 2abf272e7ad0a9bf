package database

import (
	"strings"
	"testing"
)

func TestActiveCodeIndexIsPartialAndUnique(t *testing.T) {
	for _, want := range []string{"CREATE UNIQUE INDEX", "ON class_sessions (code)", "WHERE active"} {
		if !strings.Contains(activeCodeIndex, want) {
			t.Errorf("index DDL %q lacks %q", activeCodeIndex, want)
		}
	}
}
