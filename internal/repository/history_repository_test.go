package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-writer-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistoryRepo(t *testing.T) (HistoryRepository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := NewHistoryRepository(dir)
	require.NoError(t, err)
	return repo, dir
}

func TestHistoryRepositoryFindAllMissingFile(t *testing.T) {
	repo, _ := newTestHistoryRepo(t)

	entries, err := repo.FindAll("newcomer")
	require.NoError(t, err, "没有历史文件的用户应得到空序列，而不是错误")
	assert.Empty(t, entries)
}

func TestHistoryRepositoryAppendReadAllRoundTrip(t *testing.T) {
	repo, dir := newTestHistoryRepo(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	var written []model.EssayRecord
	for i := 0; i < 5; i++ {
		entry := model.EssayRecord{
			Title:     fmt.Sprintf("essay-%d", i),
			Content:   fmt.Sprintf("content of essay %d", i),
			Timestamp: model.LocalTime(base.Add(time.Duration(i) * time.Minute)),
		}
		written = append(written, entry)
		require.NoError(t, repo.Append("alice", entry))
	}

	entries, err := repo.FindAll("alice")
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, entry := range entries {
		assert.Equal(t, written[i].Title, entry.Title, "条目必须保持插入顺序")
		assert.Equal(t, written[i].Content, entry.Content)
		assert.Equal(t, written[i].Timestamp.String(), entry.Timestamp.String())
	}

	// 文件名约定：{username}_history.json
	_, err = os.Stat(filepath.Join(dir, "alice_history.json"))
	assert.NoError(t, err)
}

func TestHistoryRepositoryDuplicateTitlesAllowed(t *testing.T) {
	repo, _ := newTestHistoryRepo(t)

	first := model.EssayRecord{Title: "same", Content: "v1", Timestamp: model.Now()}
	second := model.EssayRecord{Title: "same", Content: "v2", Timestamp: model.Now()}
	require.NoError(t, repo.Append("alice", first))
	require.NoError(t, repo.Append("alice", second))

	entries, err := repo.FindAll("alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "v1", entries[0].Content)
	assert.Equal(t, "v2", entries[1].Content)
}

func TestHistoryRepositoryPerUserIsolation(t *testing.T) {
	repo, _ := newTestHistoryRepo(t)

	require.NoError(t, repo.Append("alice", model.EssayRecord{Title: "a", Content: "x", Timestamp: model.Now()}))

	entries, err := repo.FindAll("bob")
	require.NoError(t, err)
	assert.Empty(t, entries, "各用户的历史存储互不可见")
}
