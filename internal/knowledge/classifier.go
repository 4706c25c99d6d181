// Package knowledge 提供文件分类等知识库基础能力。
package knowledge

import (
	"path/filepath"
	"strings"

	"github.com/RobustH/copilot/internal/model"
)

// 代码文件扩展名
var codeExtensions = map[string]struct{}{
	// 后端语言
	"java": {}, "kt": {}, "scala": {}, "groovy": {},
	"py": {}, "rb": {}, "php": {},
	"go": {}, "rs": {}, "c": {}, "cpp": {}, "cc": {}, "cxx": {}, "h": {}, "hpp": {},
	"cs": {}, "vb": {},
	// 前端语言
	"js": {}, "jsx": {}, "ts": {}, "tsx": {},
	"vue": {}, "svelte": {},
	// 其他
	"sh": {}, "bash": {}, "sql": {},
}

// 文档文件扩展名
var documentExtensions = map[string]struct{}{
	"md": {}, "markdown": {},
	"txt": {}, "text": {},
	"rst": {}, "adoc": {}, "asciidoc": {},
	"pdf": {}, "doc": {}, "docx": {},
}

// 配置文件扩展名
var configExtensions = map[string]struct{}{
	"json": {}, "yaml": {}, "yml": {}, "toml": {}, "ini": {},
	"xml": {}, "properties": {}, "conf": {}, "config": {},
	"env": {}, "gitignore": {}, "dockerignore": {},
}

// 扩展名到编程语言的映射
var extensionToLanguage = map[string]string{
	"java": "Java", "kt": "Kotlin", "scala": "Scala", "groovy": "Groovy",
	"py": "Python",
	"js": "JavaScript", "jsx": "JavaScript", "ts": "TypeScript", "tsx": "TypeScript",
	"vue": "Vue", "svelte": "Svelte",
	"go": "Go", "rs": "Rust", "c": "C", "cpp": "C++", "cc": "C++", "cxx": "C++",
	"h": "C/C++", "hpp": "C++",
	"cs": "C#", "rb": "Ruby", "php": "PHP",
	"sh": "Shell", "bash": "Shell", "sql": "SQL",
}

// ClassifyFileType 根据文件扩展名识别文件类型。
func ClassifyFileType(filePath string) model.FileType {
	ext := Extension(filePath)
	if _, ok := codeExtensions[ext]; ok {
		return model.FileTypeCode
	}
	if _, ok := documentExtensions[ext]; ok {
		return model.FileTypeDocument
	}
	if _, ok := configExtensions[ext]; ok {
		return model.FileTypeConfig
	}
	return model.FileTypeOther
}

// DetectLanguage 根据文件扩展名识别编程语言，未知时返回 "Unknown"。
func DetectLanguage(filePath string) string {
	if lang, ok := extensionToLanguage[Extension(filePath)]; ok {
		return lang
	}
	return "Unknown"
}

// Extension 返回小写的文件扩展名（不含点）。
func Extension(filePath string) string {
	ext := filepath.Ext(filePath)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
