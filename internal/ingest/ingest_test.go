package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/blob"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/repository"
)

func newService(t *testing.T) (*Service, repository.DocumentRepository) {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{DSN: filepath.Join(t.TempDir(), "waste.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	docs := repository.NewDocumentRepository(db, nil)
	return NewService(docs, blob.NewAFSStore("file://"+t.TempDir(), nil), nil), docs
}

func TestIngestBytes(t *testing.T) {
	ctx := context.Background()
	svc, docs := newService(t)

	res, err := svc.IngestBytes(ctx, "Renova_2024-01.csv", "", []byte("Datum;Vikt\n2024-01-02;10\n"))
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
	assert.Len(t, res.HashHex, 64)

	doc, err := docs.GetByID(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, constants.KindCSV, doc.FileKind)
	assert.Equal(t, "text/csv", doc.MIMEType)
	assert.Equal(t, constants.DocumentUploaded, doc.Status)
	assert.Equal(t, res.BlobURL, doc.BlobPath)

	again, err := svc.IngestBytes(ctx, "copy.csv", "text/csv", []byte("Datum;Vikt\n2024-01-02;10\n"))
	require.NoError(t, err)
	assert.True(t, again.Deduplicated)
	assert.Equal(t, res.DocumentID, again.DocumentID)
}

func TestIngestBytesRejects(t *testing.T) {
	svc, _ := newService(t)
	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"no name", "", []byte("x")},
		{"empty", "a.pdf", nil},
		{"unsupported", "notes.docx", []byte("x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.IngestBytes(context.Background(), tt.filename, "", tt.data)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
}

func TestIngestDirectory(t *testing.T) {
	svc, _ := newService(t)
	root := t.TempDir()
	write := func(rel, body string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
	write("jan.csv", "a;b\n1;2\n")
	write("sub/feb.csv", "a;b\n3;4\n")
	write("sub/dup.csv", "a;b\n1;2\n")
	write("readme.txt", "skip")
	write(".hidden/mar.csv", "a;b\n5;6\n")

	results, stats, err := svc.IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(3), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Zero(t, stats.Failed)

	_, _, err = svc.IngestDirectory(context.Background(), " ", false)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
