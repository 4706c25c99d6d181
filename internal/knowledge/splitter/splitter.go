// Package splitter 负责把文档内容切割为知识块。
// 各实现共享 Split(content, filePath) 契约，由工厂按扩展名选择。
package splitter

import (
	"time"

	"github.com/RobustH/copilot/internal/config"
	"github.com/RobustH/copilot/internal/knowledge"
	"github.com/RobustH/copilot/internal/model"
	"github.com/google/uuid"
)

// Strategy 标识切割策略。
type Strategy string

const (
	// StrategyToken Token 切割，默认策略，性能最优
	StrategyToken Strategy = "TOKEN"
	// StrategyRecursiveCharacter 递归字符切割，适合 Markdown 文档
	StrategyRecursiveCharacter Strategy = "RECURSIVE_CHARACTER"
	// StrategySentence 句子切割，保持语义完整性，适合 RAG 场景
	StrategySentence Strategy = "SENTENCE"
	// StrategySmartCode 代码切割，按语言选择 AST 切割器
	StrategySmartCode Strategy = "SMART_CODE"
)

// Splitter 是文档切割器接口。
type Splitter interface {
	// Split 把文档内容切割为知识块，chunkIndex 按产出顺序递增。
	Split(content, filePath string) []model.KnowledgeChunk

	// Strategy 返回该切割器对应的策略类型。
	Strategy() Strategy
}

// Factory 根据文件扩展名或策略返回合适的切割器。
type Factory struct {
	byExtension map[string]Splitter
	byStrategy  map[Strategy]Splitter
	fallback    Splitter
}

// NewFactory 按配置构建所有切割器并注册扩展名路由。
func NewFactory(cfg config.SplitterConfig) *Factory {
	token := NewTokenSplitter(cfg.ChunkSize, cfg.MinChunkSize)
	recursive := NewRecursiveCharacterSplitter(cfg.DocChunkSize, cfg.ChunkOverlap)
	sentence := NewSentenceSplitter(cfg.DocChunkSize)
	code := NewJavaASTSplitter(token)

	f := &Factory{
		byExtension: make(map[string]Splitter),
		byStrategy: map[Strategy]Splitter{
			StrategyToken:              token,
			StrategyRecursiveCharacter: recursive,
			StrategySentence:           sentence,
			StrategySmartCode:          code,
		},
		fallback: token,
	}

	f.register(code, "java")
	f.register(recursive, "md", "markdown")
	f.register(sentence, "txt", "doc", "docx", "pdf")
	return f
}

func (f *Factory) register(s Splitter, exts ...string) {
	for _, ext := range exts {
		f.byExtension[ext] = s
	}
}

// ForPath 根据文件扩展名返回切割器，未注册的扩展名走 Token 切割。
func (f *Factory) ForPath(filePath string) Splitter {
	if s, ok := f.byExtension[knowledge.Extension(filePath)]; ok {
		return s
	}
	return f.fallback
}

// ForStrategy 按策略返回切割器。
func (f *Factory) ForStrategy(strategy Strategy) Splitter {
	if s, ok := f.byStrategy[strategy]; ok {
		return s
	}
	return f.fallback
}

// newChunk 构造一个带默认元数据的知识块。行号未知时保持 (1,1)。
func newChunk(content, filePath string, fileType model.FileType, language string, index int) model.KnowledgeChunk {
	return model.KnowledgeChunk{
		ID:         uuid.NewString(),
		Content:    content,
		FilePath:   filePath,
		FileType:   fileType,
		Language:   language,
		StartLine:  1,
		EndLine:    1,
		ChunkIndex: index,
		CreatedAt:  time.Now().UnixMilli(),
	}
}
