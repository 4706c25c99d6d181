package knowledge

import (
	"testing"

	"github.com/RobustH/copilot/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestClassifyFileType(t *testing.T) {
	tests := []struct {
		path string
		want model.FileType
	}{
		{"/src/main/java/Foo.java", model.FileTypeCode},
		{"/web/app.tsx", model.FileTypeCode},
		{"/scripts/deploy.sh", model.FileTypeCode},
		{"/docs/README.md", model.FileTypeDocument},
		{"/docs/notes.TXT", model.FileTypeDocument},
		{"/reports/q3.pdf", model.FileTypeDocument},
		{"/configs/config.yaml", model.FileTypeConfig},
		{"/app/.env", model.FileTypeConfig},
		{"/pom.xml", model.FileTypeConfig},
		{"/bin/app.exe", model.FileTypeOther},
		{"/Makefile", model.FileTypeOther},
		{"", model.FileTypeOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyFileType(tt.path), "path=%s", tt.path)
	}
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "Java", DetectLanguage("/src/Foo.java"))
	assert.Equal(t, "Go", DetectLanguage("main.go"))
	assert.Equal(t, "TypeScript", DetectLanguage("app.TSX"))
	assert.Equal(t, "Unknown", DetectLanguage("README.md"))
	assert.Equal(t, "Unknown", DetectLanguage("noext"))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "java", Extension("/a/b/Foo.JAVA"))
	assert.Equal(t, "", Extension("noext"))
	assert.Equal(t, "gitignore", Extension(".gitignore"))
}
