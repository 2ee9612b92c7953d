package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsim/pkg/contract"
	"docsim/pkg/similarity"
)

func sampleReport() contract.Report {
	return contract.Report{
		RunID:          "run-1",
		Method:         "hybrid",
		Threshold:      30,
		ReferenceCount: 2,
		References:     []string{"ref/a.txt", "ref/b.txt"},
		Groups: []contract.GroupedFiles{{
			MimeType: "text/plain",
			Files: []contract.FileMetadata{{
				Name: "cand.txt", Size: 11, Encoding: "utf-8", TextContent: "hello world", MimeType: "text/plain",
				SimilarityMatches: []similarity.Match{{ReferenceIndex: 1, SimilarityPercentage: 87.5}},
			}},
		}},
	}
}

func TestSaveAndResave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.sqlite")
	s, err := New(&Options{Path: path})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleReport()))
	// 同一 run 再次保存不应产生重复行
	require.NoError(t, s.Save(ctx, sampleReport()))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var runs, files, matches int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&runs))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&files))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&matches))
	assert.Equal(t, []int{1, 1, 1}, []int{runs, files, matches})

	var name string
	var score float64
	require.NoError(t, db.QueryRow(`SELECT reference_name, similarity FROM matches`).Scan(&name, &score))
	assert.Equal(t, "ref/b.txt", name)
	assert.Equal(t, 87.5, score)
}

func TestSkipText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.sqlite")
	s, _ := New(&Options{Path: path, SkipText: true})
	require.NoError(t, s.Save(context.Background(), sampleReport()))
	db, _ := sql.Open("sqlite", path)
	defer db.Close()
	var text sql.NullString
	require.NoError(t, db.QueryRow(`SELECT text_content FROM files`).Scan(&text))
	assert.False(t, text.Valid)
}

func TestNewInvalid(t *testing.T) {
	_, err := New(&Options{})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}
