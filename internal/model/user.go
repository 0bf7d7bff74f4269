// Package model 包含了应用的数据模型定义。
package model

// User 代表凭证存储中的一个用户。
// 用户名是全局唯一键，大小写敏感；密码按原文存储（明文，不做哈希），
// 校验时进行逐字节精确比较。
type User struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	CreatedAt LocalTime `json:"createdAt"`
}
