package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	origVersion, origCommit, origDate := version, gitCommit, buildDate
	t.Cleanup(func() { version, gitCommit, buildDate = origVersion, origCommit, origDate })

	tests := []struct {
		name    string
		version string
		commit  string
		date    string
		want    string
	}{
		{name: "dev", version: "dev", want: "dev"},
		{name: "commit only", version: "1.2.0", commit: "abc123", want: "1.2.0 (abc123)"},
		{name: "full", version: "1.2.0", commit: "abc123", date: "2026-01-02", want: "1.2.0 (abc123, 2026-01-02)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, gitCommit, buildDate = tt.version, tt.commit, tt.date
			assert.Equal(t, tt.want, String())
			assert.Equal(t, tt.version, GetVersion())
			assert.Equal(t, tt.commit, GetGitCommit())
			assert.Equal(t, tt.date, GetBuildDate())
		})
	}
}
