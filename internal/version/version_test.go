package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	old := Version
	defer func() { Version = old }()
	Version = "1.2.3"
	if s := String(); !strings.Contains(s, "1.2.3") || !strings.HasPrefix(s, "roof.report") {
		t.Errorf("String() = %q", s)
	}
}
