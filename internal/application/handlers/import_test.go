package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/resource-directory/internal/domain/mocks"
	"github.com/ersonp/resource-directory/internal/domain/services"
)

func newImportHandler() (*ImportHandler, *mocks.RelationalDB) {
	db := mocks.NewRelationalDB()
	return NewImportHandler(services.NewImportService(db, nil)), db
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportHandler_Handle_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		format  string
		content string
	}{
		{"json by extension", "records.json", "", `[{"name": "Community Food Bank"}]`},
		{"csv by extension", "records.csv", "auto", "name,phone\nHarbor House,555-123-4567\n"},
		{"yaml by extension", "records.yaml", "", "- name: Downtown Shelter\n"},
		{"explicit format overrides extension", "records.txt", "json", `[{"name": "Uptown Clinic"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, db := newImportHandler()
			path := writeFile(t, tt.file, tt.content)

			result, err := handler.Handle(context.Background(), path, ImportOptions{
				Format:     tt.format,
				OnConflict: services.ConflictSkip,
				Actor:      "alice",
			})

			require.NoError(t, err)
			assert.Equal(t, 1, result.Imported)
			assert.Empty(t, result.Errors)
			assert.Len(t, db.Records, 1)
		})
	}
}

func TestImportHandler_Handle_UnsupportedFormat(t *testing.T) {
	handler, _ := newImportHandler()
	path := writeFile(t, "data.xml", "<data/>")

	_, err := handler.Handle(context.Background(), path, ImportOptions{Actor: "alice"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestImportHandler_Handle_UnknownExplicitFormat(t *testing.T) {
	handler, db := newImportHandler()
	path := writeFile(t, "records.json", `[{"name": "Community Food Bank"}]`)

	_, err := handler.Handle(context.Background(), path, ImportOptions{Format: "xml", Actor: "alice"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported format "xml"`)
	assert.Empty(t, db.Records)
}

func TestImportHandler_Handle_ParseErrorNamesFile(t *testing.T) {
	handler, _ := newImportHandler()
	path := writeFile(t, "broken.json", `[{"name": `)

	_, err := handler.Handle(context.Background(), path, ImportOptions{Actor: "alice"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing broken.json")
}

func TestImportHandler_Handle_FileNotFound(t *testing.T) {
	handler, _ := newImportHandler()

	_, err := handler.Handle(context.Background(), "/nonexistent/file.json", ImportOptions{Actor: "alice"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening file")
}

func TestImportHandler_Handle_DryRun(t *testing.T) {
	handler, db := newImportHandler()
	path := writeFile(t, "records.json", `[{"name": "Community Food Bank"}]`)

	result, err := handler.Handle(context.Background(), path, ImportOptions{DryRun: true, Actor: "alice"})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Empty(t, db.Records)
}

func TestImportHandler_Handle_EmptyFile(t *testing.T) {
	handler, _ := newImportHandler()
	path := writeFile(t, "empty.json", "[]")

	result, err := handler.Handle(context.Background(), path, ImportOptions{Actor: "alice"})

	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 0, result.Skipped)
	assert.Empty(t, result.Errors)
}
