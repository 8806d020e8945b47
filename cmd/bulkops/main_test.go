package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/bulkops/internal/cli"
	"github.com/rshade/bulkops/pkg/version"
)

func TestMainComponents(t *testing.T) {
	t.Run("version available", func(t *testing.T) {
		assert.NotEmpty(t, version.GetVersion())
	})

	t.Run("cli root command", func(t *testing.T) {
		root := cli.NewRootCmd(version.String())
		assert.NotNil(t, root)
		assert.Equal(t, "bulkops", root.Use)
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil error returns 0", err: nil, want: 0},
		{name: "generic error returns 1", err: errors.New("boom"), want: 1},
		{
			name: "ExitError carries its code",
			err:  &cli.ExitError{Code: cli.ExitCodeFailedOutcomes, Err: errors.New("2 failed")},
			want: cli.ExitCodeFailedOutcomes,
		},
		{
			name: "wrapped ExitError",
			err:  fmt.Errorf("outer: %w", &cli.ExitError{Code: 42, Err: errors.New("inner")}),
			want: 42,
		},
		{
			name: "joined ExitError",
			err:  errors.Join(errors.New("outer"), &cli.ExitError{Code: 3, Err: errors.New("joined")}),
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
