// Package docgen 负责把生成的文本渲染为可下载的字节表示。
// 所有函数都是纯函数，没有副作用。
package docgen

import (
	"bytes"
	"fmt"
	"strings"

	docx "github.com/fumiama/go-docx"
)

const (
	// DocumentHeading 是导出的 DOCX 文档中的固定标题。
	DocumentHeading = "AI-Generated Essay"

	// MIMETypeTXT 与 MIMETypeDOCX 是两种下载格式对应的 Content-Type。
	MIMETypeTXT  = "text/plain"
	MIMETypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// 文件名取标题的前 30 个字符
	fileNamePrefixLen = 30
)

// BuildTXT 返回文章内容的 UTF-8 字节表示。
func BuildTXT(content string) []byte {
	return []byte(content)
}

// BuildDOCX 构建一个最小化的 DOCX 文档：固定标题加整篇文章作为单个段落。
func BuildDOCX(content string) ([]byte, error) {
	doc := docx.New().WithDefaultTheme()

	heading := doc.AddParagraph()
	heading.AddText(DocumentHeading).Size("36").Bold()

	doc.AddParagraph().AddText(content)

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("渲染 DOCX 文档失败: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName 根据文章标题派生下载文件名：
// 取标题前 30 个字符，空格替换为下划线，加上固定的 _essay 后缀与扩展名。
func FileName(title, ext string) string {
	runes := []rune(title)
	if len(runes) > fileNamePrefixLen {
		runes = runes[:fileNamePrefixLen]
	}
	prefix := strings.ReplaceAll(string(runes), " ", "_")
	return prefix + "_essay" + ext
}
