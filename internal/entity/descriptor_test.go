package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		tuple   []string
		want    Descriptor
		wantErr bool
	}{
		{
			name:  "langcode and id",
			tuple: []string{"en", "42"},
			want:  Descriptor{PrimaryID: "42", Langcode: "en"},
		},
		{
			name:  "langcode id and revision",
			tuple: []string{"fr", "42", "7"},
			want:  Descriptor{PrimaryID: "42", Langcode: "fr", RevisionID: 7},
		},
		{
			name:  "canonicalizes langcode",
			tuple: []string{"pt-br", "9"},
			want:  Descriptor{PrimaryID: "9", Langcode: "pt-BR"},
		},
		{
			name:  "und means default",
			tuple: []string{"und", "9"},
			want:  Descriptor{PrimaryID: "9"},
		},
		{name: "too short", tuple: []string{"42"}, wantErr: true},
		{name: "too long", tuple: []string{"a", "en", "42", "7"}, wantErr: true},
		{name: "empty id", tuple: []string{"en", " "}, wantErr: true},
		{name: "bad revision", tuple: []string{"en", "42", "abc"}, wantErr: true},
		{name: "zero revision", tuple: []string{"en", "42", "0"}, wantErr: true},
		{name: "bad langcode", tuple: []string{"???", "42"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDescriptor(tt.tuple)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidDescriptor))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDescriptors(t *testing.T) {
	got, err := ParseDescriptors([][]string{{"en", "1"}, {"en", "2", "5"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].HasRevision())
	assert.True(t, got[1].HasRevision())
	assert.Equal(t, "en/2@5", got[1].String())

	_, err = ParseDescriptors([][]string{{"en", "1"}, {"x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 1")
}
