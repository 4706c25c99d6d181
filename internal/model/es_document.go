package model

// EsKnowledgeDoc 定义了存储在 Elasticsearch copilot_knowledge 索引中的文档结构。
// content 是带语义描述头的增强文本，vector 是它的向量表示。
type EsKnowledgeDoc struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	FilePath     string    `json:"file_path"`
	FileType     string    `json:"file_type"`
	Language     string    `json:"language"`
	Content      string    `json:"content"`
	Vector       []float32 `json:"vector,omitempty"`
	StartLine    int       `json:"start_line"`
	EndLine      int       `json:"end_line"`
	ChunkIndex   int       `json:"chunk_index"`
	ContentHash  string    `json:"content_hash"`
	SymbolName   string    `json:"symbol_name,omitempty"`
	SymbolKind   string    `json:"symbol_kind,omitempty"`
	ParentSymbol string    `json:"parent_symbol,omitempty"`
	CreatedAt    int64     `json:"created_at"`
}
