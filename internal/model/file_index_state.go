package model

import "time"

// FileIndexState 对应 file_index_state 表。
// 记录文件路径与内容哈希，是增量索引与删除清理的权威依据。
type FileIndexState struct {
	ID string `gorm:"type:varchar(64);primaryKey;column:id"`

	// 用户ID (多租户隔离)
	UserID string `gorm:"type:varchar(64);not null;index:idx_user_path,priority:1;column:user_id"`

	// 文件绝对路径 (与 UserID 一起构成业务主键)
	FilePath string `gorm:"type:varchar(768);not null;index:idx_user_path,priority:2,length:255;column:file_path"`

	// 最近一次成功入库内容的 MD5
	ContentHash string `gorm:"type:varchar(32);not null;column:content_hash"`

	// 最后更新时间
	LastModifiedAt time.Time `gorm:"column:last_modified_at"`

	// 文件大小（字节）
	FileSize int64 `gorm:"column:file_size"`
}

func (FileIndexState) TableName() string {
	return "file_index_state"
}
