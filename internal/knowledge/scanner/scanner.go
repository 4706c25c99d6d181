// Package scanner 负责遍历工作区，应用过滤规则（默认规则 + .gitignore），
// 返回可索引的文件列表。
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/RobustH/copilot/pkg/log"
	ignore "github.com/sabhiram/go-gitignore"
)

// 默认忽略的目录和文件
var defaultIgnores = map[string]struct{}{
	".git": {}, ".idea": {}, ".vscode": {},
	"node_modules": {}, "target": {}, "build": {}, "dist": {}, "bin": {},
	"__pycache__": {}, ".DS_Store": {}, "Thumbs.db": {},
}

// FileScanner 扫描工作区根目录，产出可索引文件的绝对路径。
type FileScanner struct{}

// NewFileScanner 创建一个新的 FileScanner。
func NewFileScanner() *FileScanner {
	return &FileScanner{}
}

// Scan 扫描指定目录并返回有效文件的绝对路径列表。
// 单个条目的 IO 错误只记录日志并跳过；根目录不可读时返回空列表。
func (s *FileScanner) Scan(rootPath string) []string {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		log.Warnf("无法解析根目录 '%s': %v", rootPath, err)
		return nil
	}

	gitIgnore := loadGitIgnore(absRoot)
	var validFiles []string

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("访问条目失败: %s, err=%v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel := relativePath(absRoot, path)

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			// 1. 默认忽略规则：按目录名裁剪整棵子树
			if _, skip := defaultIgnores[d.Name()]; skip {
				return filepath.SkipDir
			}
			// 2. .gitignore 规则：目录命中同样裁剪子树
			if gitIgnore != nil && gitIgnore.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		// 隐藏文件不索引；.gitignore 本身是配置，在上面已被读取
		if name[0] == '.' {
			return nil
		}
		if _, skip := defaultIgnores[name]; skip {
			return nil
		}
		if gitIgnore != nil && gitIgnore.MatchesPath(rel) {
			return nil
		}

		validFiles = append(validFiles, path)
		return nil
	})
	if err != nil {
		log.Errorf("遍历目录失败: %s, err=%v", absRoot, err)
	}

	log.Infof("扫描完成: 目录=%s, 文件数=%d", absRoot, len(validFiles))
	return validFiles
}

// loadGitIgnore 读取根目录下的 .gitignore，不存在时返回 nil。
func loadGitIgnore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		log.Warnf("加载 .gitignore 失败: %v", err)
		return nil
	}
	log.Infof("已加载 .gitignore 规则: %s", path)
	return gi
}

// relativePath 计算 path 相对 root 的 slash 风格相对路径。
func relativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
