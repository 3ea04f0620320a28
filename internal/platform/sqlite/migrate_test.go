package sqlite

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laju/internal/config"
)

func TestBuildMigrateURL(t *testing.T) {
	tests := []struct {
		name      string
		inputPath string
	}{
		{name: "relative path", inputPath: "data/dev.sqlite3"},
		{name: "absolute path", inputPath: filepath.Join(t.TempDir(), "app.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := BuildMigrateURL(tt.inputPath)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(url, "sqlite:///"))
			assert.True(t, strings.HasSuffix(url, filepath.Base(tt.inputPath)))
			assert.NotContains(t, url, "\\")
		})
	}
}

func TestBuildMigrateURL_Windows(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("windows-only path handling")
	}

	url, err := BuildMigrateURL("C:\\temp\\test.db")
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///C:/temp/test.db", url)
}

func TestMigrateURL(t *testing.T) {
	desc := config.ResolveFrom(config.StageTest, func(string) string { return "" })

	url, err := MigrateURL(desc)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, "/data/test.sqlite3"))

	desc.Client = config.ClientPostgres
	_, err = MigrateURL(desc)
	assert.Error(t, err)
}
