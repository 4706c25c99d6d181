package service

import (
	"context"
	"crypto/md5"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/RobustH/copilot/internal/knowledge/scanner"
	"github.com/RobustH/copilot/internal/knowledge/splitter"
	"github.com/RobustH/copilot/internal/model"
	"github.com/RobustH/copilot/internal/repository"
	"github.com/RobustH/copilot/pkg/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CodebaseIndexer 是代码库索引编排器。
// 负责全量扫描、增量差异计算、调用切割器并驱动两个存储的写入。
type CodebaseIndexer struct {
	scanner            *scanner.FileScanner
	stateRepo          repository.IndexStateRepository
	splitterFactory    *splitter.Factory
	vectorStoreService *KnowledgeVectorStoreService
	reportRepo         repository.RefreshReportRepository
	workers            int
}

// NewCodebaseIndexer 创建一个新的 CodebaseIndexer 实例。
// reportRepo 可以为 nil，此时刷新结果只记日志不落缓存。
func NewCodebaseIndexer(
	fileScanner *scanner.FileScanner,
	stateRepo repository.IndexStateRepository,
	splitterFactory *splitter.Factory,
	vectorStoreService *KnowledgeVectorStoreService,
	reportRepo repository.RefreshReportRepository,
	workers int,
) *CodebaseIndexer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CodebaseIndexer{
		scanner:            fileScanner,
		stateRepo:          stateRepo,
		splitterFactory:    splitterFactory,
		vectorStoreService: vectorStoreService,
		reportRepo:         reportRepo,
		workers:            workers,
	}
}

// Refresh 触发刷新索引：扫描工作区，对每个文件做新增/更新/跳过判定，
// 最后清理磁盘上已删除的文件。
//
// 单文件的读取、解析或写入错误只计数并继续；扫描或状态库的全局错误中止刷新。
// 文件间并行处理，单个文件内部保持 先删旧 → 写新块 → 更新状态行 的顺序。
// 取消在文件边界生效，已完成的文件保持一致状态。
func (ix *CodebaseIndexer) Refresh(ctx context.Context, userID, workspacePath string) (*model.RefreshReport, error) {
	log.Infof("开始刷新索引: 用户=%s, 路径=%s", userID, workspacePath)
	startedAt := time.Now()

	// 1. 扫描文件
	files := ix.scanner.Scan(workspacePath)
	log.Infof("扫描到 %d 个文件", len(files))

	var added, updated, skipped, deleted, errCount int64

	// 2. 遍历处理 (Diff 逻辑)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for _, file := range files {
		filePath := file
		g.Go(func() error {
			// 取消只在文件边界生效
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			switch ix.processFile(gctx, userID, filePath) {
			case fileAdded:
				atomic.AddInt64(&added, 1)
			case fileUpdated:
				atomic.AddInt64(&updated, 1)
			case fileSkipped:
				atomic.AddInt64(&skipped, 1)
			case fileErrored:
				atomic.AddInt64(&errCount, 1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 3. 处理被删除的文件（状态库中有但文件系统中没有的）
	states, err := ix.stateRepo.FindAllByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("读取索引状态失败: %w", err)
	}

	scannedPaths := make(map[string]struct{}, len(files))
	for _, file := range files {
		scannedPaths[file] = struct{}{}
	}

	for _, state := range states {
		if _, exists := scannedPaths[state.FilePath]; exists {
			continue
		}
		log.Infof("发现已删除文件: %s", state.FilePath)

		// 先清理两个存储，再删状态行
		if err := ix.vectorStoreService.DeleteKnowledgeByFilePath(ctx, userID, state.FilePath); err != nil {
			log.Errorf("清理已删除文件数据失败: %s, err=%v", state.FilePath, err)
			atomic.AddInt64(&errCount, 1)
			continue
		}
		if err := ix.stateRepo.DeleteByID(state.ID); err != nil {
			log.Errorf("删除状态行失败: %s, err=%v", state.FilePath, err)
			atomic.AddInt64(&errCount, 1)
			continue
		}
		deleted++
	}

	report := &model.RefreshReport{
		Added:         int(added),
		Updated:       int(updated),
		Skipped:       int(skipped),
		Deleted:       int(deleted),
		Errors:        int(errCount),
		WorkspacePath: workspacePath,
		DurationMS:    time.Since(startedAt).Milliseconds(),
		FinishedAt:    time.Now().UnixMilli(),
	}
	log.Infof("索引刷新完成. 新增: %d, 更新: %d, 删除: %d, 跳过: %d, 错误: %d",
		report.Added, report.Updated, report.Deleted, report.Skipped, report.Errors)

	if ix.reportRepo != nil {
		if err := ix.reportRepo.Save(ctx, userID, report); err != nil {
			log.Warnf("缓存刷新结果失败: %v", err)
		}
	}
	return report, nil
}

// fileAction 是单个文件的处理结果。
type fileAction int

const (
	fileAdded fileAction = iota
	fileUpdated
	fileSkipped
	fileErrored
)

// processFile 对单个文件执行增量判定与索引。
func (ix *CodebaseIndexer) processFile(ctx context.Context, userID, filePath string) fileAction {
	data, err := os.ReadFile(filePath)
	if err != nil {
		log.Errorf("读取文件失败: %s, err=%v", filePath, err)
		return fileErrored
	}
	currentHash := fmt.Sprintf("%x", md5.Sum(data))

	state, err := ix.stateRepo.FindByUserAndPath(userID, filePath)
	if err != nil {
		log.Errorf("查询索引状态失败: %s, err=%v", filePath, err)
		return fileErrored
	}

	if state == nil {
		// 新增文件
		if err := ix.indexFile(ctx, userID, filePath, string(data), currentHash, nil); err != nil {
			log.Errorf("索引文件失败: %s, err=%v", filePath, err)
			return fileErrored
		}
		return fileAdded
	}

	if state.ContentHash == currentHash {
		// 无变更，跳过
		return fileSkipped
	}

	// 内容变更，重新索引：先清理旧数据再写入
	if err := ix.vectorStoreService.DeleteKnowledgeByFilePath(ctx, userID, filePath); err != nil {
		log.Errorf("清理旧数据失败: %s, err=%v", filePath, err)
		return fileErrored
	}
	if err := ix.indexFile(ctx, userID, filePath, string(data), currentHash, state); err != nil {
		log.Errorf("重新索引文件失败: %s, err=%v", filePath, err)
		return fileErrored
	}
	return fileUpdated
}

// indexFile 切割并写入单个文件：写块在前，状态行最后落库，
// 保证状态行只见证成功入库的内容。
func (ix *CodebaseIndexer) indexFile(ctx context.Context, userID, filePath, content, hash string, existing *model.FileIndexState) error {
	// 1. 获取合适的切割器并切割文档
	chunks := ix.splitterFactory.ForPath(filePath).Split(content, filePath)

	// 2. 补充租户与文件哈希信息
	for i := range chunks {
		chunks[i].UserID = userID
		chunks[i].ContentHash = hash
	}

	// 3. 存入向量库 + FTS（一个文件一批）
	if err := ix.vectorStoreService.AddKnowledgeBatch(ctx, userID, chunks); err != nil {
		return err
	}

	// 4. 更新状态库
	if existing == nil {
		return ix.stateRepo.Create(&model.FileIndexState{
			ID:             uuid.NewString(),
			UserID:         userID,
			FilePath:       filePath,
			ContentHash:    hash,
			LastModifiedAt: time.Now(),
			FileSize:       int64(len(content)),
		})
	}

	existing.ContentHash = hash
	existing.LastModifiedAt = time.Now()
	existing.FileSize = int64(len(content))
	return ix.stateRepo.Update(existing)
}
