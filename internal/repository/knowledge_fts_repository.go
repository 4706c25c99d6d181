package repository

import (
	"github.com/RobustH/copilot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KnowledgeFtsRepository 定义了对 knowledge_fts 全文检索表的数据操作接口。
type KnowledgeFtsRepository interface {
	// BatchInsert 批量写入，主键冲突时更新（幂等）。
	BatchInsert(records []*model.KnowledgeFts) error
	// FullTextSearch 执行 BOOLEAN MODE 全文检索，按相关性降序返回。
	// 只返回得分严格为正的记录。
	FullTextSearch(userID, booleanQuery string, limit int) ([]*model.KnowledgeFts, error)
	DeleteByFilePath(userID, filePath string) error
	DeleteByUserID(userID string) error
}

type knowledgeFtsRepository struct {
	db *gorm.DB
}

// NewKnowledgeFtsRepository 创建一个新的 KnowledgeFtsRepository 实例。
func NewKnowledgeFtsRepository(db *gorm.DB) KnowledgeFtsRepository {
	return &knowledgeFtsRepository{db: db}
}

func (r *knowledgeFtsRepository) BatchInsert(records []*model.KnowledgeFts) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(
			[]string{"content", "file_path", "start_line", "end_line"},
		),
	}).CreateInBatches(records, 100).Error
}

func (r *knowledgeFtsRepository) FullTextSearch(userID, booleanQuery string, limit int) ([]*model.KnowledgeFts, error) {
	var records []*model.KnowledgeFts
	err := r.db.Raw(
		`SELECT id, user_id, file_path, content, start_line, end_line,
		        MATCH(content) AGAINST (? IN BOOLEAN MODE) AS score
		 FROM knowledge_fts
		 WHERE user_id = ?
		   AND MATCH(content) AGAINST (? IN BOOLEAN MODE) > 0
		 ORDER BY score DESC
		 LIMIT ?`,
		booleanQuery, userID, booleanQuery, limit,
	).Scan(&records).Error
	return records, err
}

func (r *knowledgeFtsRepository) DeleteByFilePath(userID, filePath string) error {
	return r.db.Where("user_id = ? AND file_path = ?", userID, filePath).
		Delete(&model.KnowledgeFts{}).Error
}

func (r *knowledgeFtsRepository) DeleteByUserID(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&model.KnowledgeFts{}).Error
}
