// Package repository 定义了对持久化存储的数据操作接口。
package repository

import (
	"errors"

	"github.com/RobustH/copilot/internal/model"
	"gorm.io/gorm"
)

// IndexStateRepository 定义了对 file_index_state 表的数据操作接口。
type IndexStateRepository interface {
	// FindByUserAndPath 查询单条状态记录，不存在时返回 (nil, nil)。
	FindByUserAndPath(userID, filePath string) (*model.FileIndexState, error)
	// FindAllByUser 返回该用户的全部状态记录。
	FindAllByUser(userID string) ([]*model.FileIndexState, error)
	Create(state *model.FileIndexState) error
	Update(state *model.FileIndexState) error
	DeleteByID(id string) error
}

type indexStateRepository struct {
	db *gorm.DB
}

// NewIndexStateRepository 创建一个新的 IndexStateRepository 实例。
func NewIndexStateRepository(db *gorm.DB) IndexStateRepository {
	return &indexStateRepository{db: db}
}

func (r *indexStateRepository) FindByUserAndPath(userID, filePath string) (*model.FileIndexState, error) {
	var state model.FileIndexState
	err := r.db.Where("user_id = ? AND file_path = ?", userID, filePath).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *indexStateRepository) FindAllByUser(userID string) ([]*model.FileIndexState, error) {
	var states []*model.FileIndexState
	err := r.db.Where("user_id = ?", userID).Find(&states).Error
	return states, err
}

func (r *indexStateRepository) Create(state *model.FileIndexState) error {
	return r.db.Create(state).Error
}

func (r *indexStateRepository) Update(state *model.FileIndexState) error {
	return r.db.Save(state).Error
}

func (r *indexStateRepository) DeleteByID(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.FileIndexState{}).Error
}
