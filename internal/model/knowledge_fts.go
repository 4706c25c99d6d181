package model

// KnowledgeFts 对应 knowledge_fts 全文检索表。
// content 列由文件名、符号信息和块正文拼接而成，走 ngram FULLTEXT 索引。
type KnowledgeFts struct {
	// chunk ID（与向量库 ID 一致）
	ID string `gorm:"type:varchar(64);primaryKey;column:id"`

	// 用户 ID，用于数据隔离
	UserID string `gorm:"type:varchar(64);not null;column:user_id"`

	// 文件路径
	FilePath string `gorm:"type:varchar(768);not null;column:file_path"`

	// 全文检索内容
	Content string `gorm:"type:longtext;not null;column:content"`

	// 起始/结束行号
	StartLine int `gorm:"column:start_line"`
	EndLine   int `gorm:"column:end_line"`

	// 检索时由 MATCH ... AGAINST 计算，不落库
	Score float64 `gorm:"->;-:migration;column:score"`
}

func (KnowledgeFts) TableName() string {
	return "knowledge_fts"
}
