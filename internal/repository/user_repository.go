// Package repository 定义了数据持久化的接口和实现。
// 凭证与历史记录都采用整文件读-改-写的 JSON 存储，不加锁、不做事务；
// 两个会话并发写同一文件时以最后写入者为准，这是被接受的限制。
package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"ai-writer-go/internal/model"
)

var (
	// ErrUserExists 表示注册时用户名已被占用。
	ErrUserExists = errors.New("用户名已存在")
	// ErrUserNotFound 表示凭证存储中没有该用户。
	ErrUserNotFound = errors.New("用户不存在")
)

// UserRepository 接口定义了用户凭证的持久化操作。
type UserRepository interface {
	Create(user *model.User) error
	FindByUsername(username string) (*model.User, error)
	FindAll() (map[string]*model.User, error)
}

// userRecord 是 users.json 中与单个用户名对应的对象。
// password 字段是必须的，其余为附加属性。
type userRecord struct {
	Password  string          `json:"password"`
	CreatedAt model.LocalTime `json:"created_at"`
}

// jsonUserRepository 是 UserRepository 的 JSON 文件实现。
type jsonUserRepository struct {
	filePath string
}

// NewUserRepository 创建一个以单个 JSON 文件为后端的 UserRepository。
func NewUserRepository(filePath string) UserRepository {
	return &jsonUserRepository{filePath: filePath}
}

// load 读取整个凭证文件。文件不存在视为“还没有用户”，返回空映射而非错误。
func (r *jsonUserRepository) load() (map[string]userRecord, error) {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]userRecord{}, nil
		}
		return nil, fmt.Errorf("读取凭证文件失败: %w", err)
	}

	records := map[string]userRecord{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("解析凭证文件失败: %w", err)
	}
	return records, nil
}

// save 将完整映射重写回文件，4 空格缩进。
func (r *jsonUserRepository) save(records map[string]userRecord) error {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("序列化凭证数据失败: %w", err)
	}
	if err := os.WriteFile(r.filePath, data, 0644); err != nil {
		return fmt.Errorf("写入凭证文件失败: %w", err)
	}
	return nil
}

// Create 向凭证存储插入一个新用户。
// 用户名已存在时返回 ErrUserExists，原有记录保持不变。
func (r *jsonUserRepository) Create(user *model.User) error {
	records, err := r.load()
	if err != nil {
		return err
	}
	if _, exists := records[user.Username]; exists {
		return ErrUserExists
	}
	records[user.Username] = userRecord{
		Password:  user.Password,
		CreatedAt: user.CreatedAt,
	}
	return r.save(records)
}

// FindByUsername 根据用户名查找一个用户。
func (r *jsonUserRepository) FindByUsername(username string) (*model.User, error) {
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	record, exists := records[username]
	if !exists {
		return nil, ErrUserNotFound
	}
	return &model.User{
		Username:  username,
		Password:  record.Password,
		CreatedAt: record.CreatedAt,
	}, nil
}

// FindAll 返回凭证存储中的所有用户。
func (r *jsonUserRepository) FindAll() (map[string]*model.User, error) {
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	users := make(map[string]*model.User, len(records))
	for username, record := range records {
		users[username] = &model.User{
			Username:  username,
			Password:  record.Password,
			CreatedAt: record.CreatedAt,
		}
	}
	return users, nil
}
