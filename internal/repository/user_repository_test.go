package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"ai-writer-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUserRepo(t *testing.T) (UserRepository, string) {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), "users.json")
	return NewUserRepository(filePath), filePath
}

func TestUserRepositoryFindAllMissingFile(t *testing.T) {
	repo, _ := newTestUserRepo(t)

	users, err := repo.FindAll()
	require.NoError(t, err, "缺失的凭证文件应视为空存储，而不是错误")
	assert.Empty(t, users)
}

func TestUserRepositoryCreateAndFind(t *testing.T) {
	repo, filePath := newTestUserRepo(t)

	err := repo.Create(&model.User{Username: "alice", Password: "s3cret", CreatedAt: model.Now()})
	require.NoError(t, err)

	user, err := repo.FindByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "s3cret", user.Password)

	// 持久化文件应是 username -> {password} 的 JSON 对象
	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	var raw map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "alice")
	assert.Equal(t, "s3cret", raw["alice"]["password"])
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	repo, _ := newTestUserRepo(t)

	require.NoError(t, repo.Create(&model.User{Username: "alice", Password: "first"}))
	require.NoError(t, repo.Create(&model.User{Username: "bob", Password: "other"}))

	err := repo.Create(&model.User{Username: "alice", Password: "second"})
	assert.ErrorIs(t, err, ErrUserExists)

	// 冲突的注册不得改动已有记录
	alice, err := repo.FindByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "first", alice.Password)

	bob, err := repo.FindByUsername("bob")
	require.NoError(t, err)
	assert.Equal(t, "other", bob.Password)
}

func TestUserRepositoryUsernameCaseSensitive(t *testing.T) {
	repo, _ := newTestUserRepo(t)

	require.NoError(t, repo.Create(&model.User{Username: "Alice", Password: "pw"}))

	// 大小写不同视为不同用户
	require.NoError(t, repo.Create(&model.User{Username: "alice", Password: "pw2"}))

	_, err := repo.FindByUsername("ALICE")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepositoryFindUnknown(t *testing.T) {
	repo, _ := newTestUserRepo(t)

	_, err := repo.FindByUsername("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
