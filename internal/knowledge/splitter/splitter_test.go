package splitter

import (
	"os"
	"testing"

	"github.com/RobustH/copilot/internal/config"
	"github.com/RobustH/copilot/pkg/log"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

// newTestFactory 用默认参数构建工厂。
func newTestFactory() *Factory {
	return NewFactory(config.SplitterConfig{})
}

func TestFactory_ForPath(t *testing.T) {
	f := newTestFactory()

	assert.Equal(t, StrategySmartCode, f.ForPath("/src/Foo.java").Strategy())
	assert.Equal(t, StrategyRecursiveCharacter, f.ForPath("README.md").Strategy())
	assert.Equal(t, StrategyRecursiveCharacter, f.ForPath("guide.markdown").Strategy())
	assert.Equal(t, StrategySentence, f.ForPath("notes.txt").Strategy())
	assert.Equal(t, StrategySentence, f.ForPath("spec.docx").Strategy())
	assert.Equal(t, StrategySentence, f.ForPath("paper.pdf").Strategy())
	// 未注册的扩展名走 Token 切割
	assert.Equal(t, StrategyToken, f.ForPath("main.go").Strategy())
	assert.Equal(t, StrategyToken, f.ForPath("noext").Strategy())
}

func TestFactory_ForStrategy(t *testing.T) {
	f := newTestFactory()

	assert.Equal(t, StrategyToken, f.ForStrategy(StrategyToken).Strategy())
	assert.Equal(t, StrategySentence, f.ForStrategy(StrategySentence).Strategy())
	// 未知策略回退到 Token
	assert.Equal(t, StrategyToken, f.ForStrategy(Strategy("NOPE")).Strategy())
}

// 固定输入与配置下，块边界必须是确定性的。
func TestSplitters_Deterministic(t *testing.T) {
	f := newTestFactory()
	content := "First sentence. Second sentence.\n\nAnother paragraph with more text.\nAnd one more line.\n"

	for _, path := range []string{"a.md", "a.txt", "a.go"} {
		first := f.ForPath(path).Split(content, path)
		second := f.ForPath(path).Split(content, path)
		assert.Equal(t, len(first), len(second), "path=%s", path)
		for i := range first {
			assert.Equal(t, first[i].Content, second[i].Content, "path=%s chunk=%d", path, i)
		}
	}
}

func TestChunkIndexMonotonic(t *testing.T) {
	f := newTestFactory()
	content := "Paragraph one.\n\nParagraph two.\n\nParagraph three.\n"

	chunks := f.ForPath("doc.md").Split(content, "doc.md")
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.NotEmpty(t, chunk.ID)
	}
}
