// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Knowledge     KnowledgeConfig     `mapstructure:"knowledge"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ElasticsearchConfig 存储向量索引所在 Elasticsearch 集群的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// KnowledgeConfig 存储知识库索引与检索相关的配置。
type KnowledgeConfig struct {
	// WorkspaceDir 是默认工作区目录名，相对服务进程的工作目录。
	WorkspaceDir string         `mapstructure:"workspace_dir"`
	Splitter     SplitterConfig `mapstructure:"splitter"`
	Indexer      IndexerConfig  `mapstructure:"indexer"`
	Search       SearchConfig   `mapstructure:"search"`
}

// SplitterConfig 配置文档切割器的参数。
type SplitterConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`     // Token 切割器目标大小
	MinChunkSize int `mapstructure:"min_chunk_size"` // Token 切割器最小块
	DocChunkSize int `mapstructure:"doc_chunk_size"` // 文档类切割器目标字符数
	ChunkOverlap int `mapstructure:"chunk_overlap"`  // 递归切割器重叠字符数
}

// IndexerConfig 配置索引编排器。
type IndexerConfig struct {
	Workers int `mapstructure:"workers"` // 并行处理文件的 worker 数，<=0 时取 CPU 数
}

// SearchConfig 配置检索参数。
type SearchConfig struct {
	DefaultTopK   int `mapstructure:"default_top_k"`   // 工具默认返回条数
	MaxFileChunks int `mapstructure:"max_file_chunks"` // 按文件删除时的搜索上限
	MaxUserChunks int `mapstructure:"max_user_chunks"` // 按用户删除时的搜索上限
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults()
}

// applyDefaults 为未配置的知识库参数填充默认值。
func applyDefaults() {
	if Conf.Knowledge.WorkspaceDir == "" {
		Conf.Knowledge.WorkspaceDir = "workspace"
	}
	if Conf.Knowledge.Splitter.ChunkSize <= 0 {
		Conf.Knowledge.Splitter.ChunkSize = 2000
	}
	if Conf.Knowledge.Splitter.MinChunkSize <= 0 {
		Conf.Knowledge.Splitter.MinChunkSize = 100
	}
	if Conf.Knowledge.Splitter.DocChunkSize <= 0 {
		Conf.Knowledge.Splitter.DocChunkSize = 500
	}
	if Conf.Knowledge.Splitter.ChunkOverlap <= 0 {
		Conf.Knowledge.Splitter.ChunkOverlap = 50
	}
	if Conf.Knowledge.Search.DefaultTopK <= 0 {
		Conf.Knowledge.Search.DefaultTopK = 5
	}
	if Conf.Knowledge.Search.MaxFileChunks <= 0 {
		Conf.Knowledge.Search.MaxFileChunks = 1000
	}
	if Conf.Knowledge.Search.MaxUserChunks <= 0 {
		Conf.Knowledge.Search.MaxUserChunks = 10000
	}
	if Conf.Embedding.Dimensions <= 0 {
		Conf.Embedding.Dimensions = 1024
	}
	if Conf.Elasticsearch.IndexName == "" {
		Conf.Elasticsearch.IndexName = "copilot_knowledge"
	}
}
