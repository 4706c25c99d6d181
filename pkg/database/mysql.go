package database

import (
	"time"

	"github.com/RobustH/copilot/internal/model"
	"github.com/RobustH/copilot/pkg/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// knowledge_fts 需要 ngram 解析器的 FULLTEXT 索引，GORM 的 AutoMigrate
// 无法表达，因此用原生 DDL 建表。ngram_token_size 取 MySQL 默认值 2。
const createKnowledgeFtsTable = `
CREATE TABLE IF NOT EXISTS knowledge_fts (
    id         VARCHAR(64)  NOT NULL,
    user_id    VARCHAR(64)  NOT NULL,
    file_path  VARCHAR(768) NOT NULL,
    content    LONGTEXT     NOT NULL,
    start_line INT          NOT NULL DEFAULT 0,
    end_line   INT          NOT NULL DEFAULT 0,
    PRIMARY KEY (id),
    KEY idx_user_file (user_id, file_path(255)),
    FULLTEXT KEY ft_content (content) WITH PARSER ngram
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// InitMySQL 初始化 MySQL 数据库连接并迁移知识库相关表。
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		// 可以在这里添加 GORM 的配置
	})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间

	// 迁移表结构
	if err := DB.AutoMigrate(&model.FileIndexState{}); err != nil {
		log.Fatal("failed to migrate file_index_state", err)
	}
	if err := DB.Exec(createKnowledgeFtsTable).Error; err != nil {
		log.Fatal("failed to create knowledge_fts", err)
	}

	log.Info("MySQL database connected successfully")
}
