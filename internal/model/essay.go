package model

// EssayRecord 代表历史记录文件中的一条生成记录。
// 记录一经写入不再修改；文件内按插入顺序存储（最旧的在前）。
type EssayRecord struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Timestamp LocalTime `json:"timestamp"`
}

// Tones 是文章语气的固定枚举集合。
var Tones = []string{"Academic", "Analytical", "Reflective", "Creative", "Persuasive", "Narrative"}

// IsValidTone 判断给定语气是否属于枚举集合。
func IsValidTone(tone string) bool {
	for _, t := range Tones {
		if t == tone {
			return true
		}
	}
	return false
}

// GenerateRequest 定义了一次文章生成请求（非持久化）。
// Topic 与 SourceText 可以为空，但不允许同时为空；
// SourceText 在提交前会被截断为固定前缀长度。
type GenerateRequest struct {
	Topic      string `json:"topic"`
	Tone       string `json:"tone"`
	WordCount  int    `json:"wordCount"`
	SourceText string `json:"sourceText"`
}
