package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_EmbeddedSet(t *testing.T) {
	// The shipped migration set must always validate: conforming names,
	// paired up/down files, gapless sequence from 001.
	require.NoError(t, Validate())
}

func TestList_ReturnsSortedConformingFiles(t *testing.T) {
	files, err := List()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		assert.True(t, migrationFilePattern.MatchString(f), "non-conforming migration filename %q", f)
	}

	for i := 1; i < len(files); i++ {
		assert.LessOrEqual(t, files[i-1], files[i])
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		filename  string
		wantSeq   int
		wantName  string
		wantDir   string
		wantError bool
	}{
		{filename: "001_reference_entities.up.sql", wantSeq: 1, wantName: "reference_entities", wantDir: "up"},
		{filename: "002_peak_annotation.down.sql", wantSeq: 2, wantName: "peak_annotation", wantDir: "down"},
		{filename: "1_bad.up.sql", wantError: true},
		{filename: "001_bad-name.up.sql", wantError: true},
		{filename: "001_missing_direction.sql", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			file, err := Parse(tt.filename)
			if tt.wantError {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantSeq, file.Sequence)
			assert.Equal(t, tt.wantName, file.Name)
			assert.Equal(t, tt.wantDir, file.Direction)
		})
	}
}

func TestMaxVersion(t *testing.T) {
	files, err := List()
	require.NoError(t, err)

	// MaxVersion must agree with the actual file set.
	assert.Equal(t, len(files)/2, MaxVersion())
}

func TestEmbeddedFilesAreNonEmpty(t *testing.T) {
	files, err := List()
	require.NoError(t, err)

	for _, filename := range files {
		content, err := fs.ReadFile(FS, filename)
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(string(content)), "migration %q is empty", filename)
	}
}
