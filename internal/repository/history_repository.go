package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ai-writer-go/internal/model"
)

// HistoryRepository 接口定义了按用户分区的文章历史的持久化操作。
// 每个用户对应一个独立文件，追加即整文件重写，没有容量上限。
type HistoryRepository interface {
	Append(username string, entry model.EssayRecord) error
	FindAll(username string) ([]model.EssayRecord, error)
}

// jsonHistoryRepository 是 HistoryRepository 的 JSON 文件实现。
// 文件命名为 {username}_history.json，存放在统一目录下。
type jsonHistoryRepository struct {
	dir string
}

// NewHistoryRepository 创建一个以目录为后端的 HistoryRepository，
// 目录不存在时会被创建。
func NewHistoryRepository(dir string) (HistoryRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建历史记录目录失败: %w", err)
	}
	return &jsonHistoryRepository{dir: dir}, nil
}

func (r *jsonHistoryRepository) filePath(username string) string {
	return filepath.Join(r.dir, username+"_history.json")
}

// FindAll 返回某个用户的全部历史记录，按插入顺序（最旧的在前）。
// 文件不存在视为“还没有历史”，返回空序列而非错误。
func (r *jsonHistoryRepository) FindAll(username string) ([]model.EssayRecord, error) {
	data, err := os.ReadFile(r.filePath(username))
	if err != nil {
		if os.IsNotExist(err) {
			return []model.EssayRecord{}, nil
		}
		return nil, fmt.Errorf("读取历史记录文件失败: %w", err)
	}

	entries := []model.EssayRecord{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("解析历史记录文件失败: %w", err)
	}
	return entries, nil
}

// Append 读出已有列表、追加新记录并整文件重写，4 空格缩进。
func (r *jsonHistoryRepository) Append(username string, entry model.EssayRecord) error {
	entries, err := r.FindAll(username)
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("序列化历史记录失败: %w", err)
	}
	if err := os.WriteFile(r.filePath(username), data, 0644); err != nil {
		return fmt.Errorf("写入历史记录文件失败: %w", err)
	}
	return nil
}
