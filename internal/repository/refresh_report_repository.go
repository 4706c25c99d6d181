package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RobustH/copilot/internal/model"
	"github.com/go-redis/redis/v8"
)

// 最近一次刷新结果在 Redis 中的保存时长。
const refreshReportTTL = 7 * 24 * time.Hour

// RefreshReportRepository 缓存每个用户最近一次索引刷新的结果。
type RefreshReportRepository interface {
	Save(ctx context.Context, userID string, report *model.RefreshReport) error
	// FindByUser 读取最近一次刷新结果，没有记录时返回 (nil, nil)。
	FindByUser(ctx context.Context, userID string) (*model.RefreshReport, error)
}

type refreshReportRepository struct {
	rdb *redis.Client
}

// NewRefreshReportRepository 创建一个新的 RefreshReportRepository 实例。
func NewRefreshReportRepository(rdb *redis.Client) RefreshReportRepository {
	return &refreshReportRepository{rdb: rdb}
}

func reportKey(userID string) string {
	return fmt.Sprintf("knowledge:refresh:last:%s", userID)
}

func (r *refreshReportRepository) Save(ctx context.Context, userID string, report *model.RefreshReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("序列化刷新结果失败: %w", err)
	}
	return r.rdb.Set(ctx, reportKey(userID), data, refreshReportTTL).Err()
}

func (r *refreshReportRepository) FindByUser(ctx context.Context, userID string) (*model.RefreshReport, error) {
	data, err := r.rdb.Get(ctx, reportKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report model.RefreshReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("解析刷新结果失败: %w", err)
	}
	return &report, nil
}
