package splitter

import (
	"context"
	"fmt"
	"strings"

	"github.com/RobustH/copilot/internal/model"
	"github.com/RobustH/copilot/pkg/log"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// JavaASTSplitter 基于 tree-sitter 的 Java 代码切割器。
// 按编译单元提取顶层类/接口（方法体擦除后的签名）与每个方法（完整代码），
// 行号取自 AST。解析失败时透明降级到 Token 切割器，保证文件不丢。
type JavaASTSplitter struct {
	fallback Splitter
}

// NewJavaASTSplitter 创建 Java AST 切割器。
func NewJavaASTSplitter(fallback Splitter) *JavaASTSplitter {
	return &JavaASTSplitter{fallback: fallback}
}

func (s *JavaASTSplitter) Strategy() Strategy {
	return StrategySmartCode
}

// codeUnit 是从 AST 中提取出的一个代码单元。
type codeUnit struct {
	kind      string
	name      string
	content   string
	parent    string
	startLine int
	endLine   int
}

// Split 切割 Java 源码。
func (s *JavaASTSplitter) Split(content, filePath string) []model.KnowledgeChunk {
	src := []byte(content)

	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		log.Warnf("Java 解析失败: %s, 使用 fallback: %v", filePath, err)
		return s.fallback.Split(content, filePath)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		log.Warnf("Java 源码存在语法错误: %s, 使用 fallback", filePath)
		return s.fallback.Split(content, filePath)
	}

	units := extractCodeUnits(root, src)
	if len(units) == 0 {
		return s.fallback.Split(content, filePath)
	}

	chunks := make([]model.KnowledgeChunk, 0, len(units))
	for i, unit := range units {
		chunks = append(chunks, createCodeChunk(unit, filePath, i))
	}
	return chunks
}

// extractCodeUnits 遍历编译单元，按文件顺序提取类/接口与方法。
func extractCodeUnits(root *sitter.Node, src []byte) []codeUnit {
	packageName := extractPackageName(root, src)

	var units []codeUnit
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "class_declaration":
			visitType(node, model.SymbolClass, packageName, src, &units)
		case "interface_declaration":
			visitType(node, model.SymbolInterface, packageName, src, &units)
		}
	}
	return units
}

// extractPackageName 返回 package 声明中的包名，没有声明时为空串。
func extractPackageName(root *sitter.Node, src []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() != "package_declaration" {
			continue
		}
		for j := 0; j < int(node.NamedChildCount()); j++ {
			child := node.NamedChild(j)
			if child.Type() == "scoped_identifier" || child.Type() == "identifier" {
				return child.Content(src)
			}
		}
	}
	return ""
}

// visitType 提取一个类型声明：类型本身的签名块 + 每个方法的完整代码块。
func visitType(node *sitter.Node, kind, packageName string, src []byte, units *[]codeUnit) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	typeName := nameNode.Content(src)

	*units = append(*units, codeUnit{
		kind:      kind,
		name:      typeName,
		content:   typeSignature(node, src),
		parent:    packageName,
		startLine: int(node.StartPoint().Row) + 1,
		endLine:   int(node.EndPoint().Row) + 1,
	})

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	classContext := "class " + typeName
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member.Type() != "method_declaration" {
			continue
		}
		methodName := ""
		if n := member.ChildByFieldName("name"); n != nil {
			methodName = n.Content(src)
		}
		*units = append(*units, codeUnit{
			kind:      model.SymbolMethod,
			name:      methodName,
			content:   member.Content(src),
			parent:    classContext,
			startLine: int(member.StartPoint().Row) + 1,
			endLine:   int(member.EndPoint().Row) + 1,
		})
	}
}

// typeSignature 返回类型声明的签名部分：方法体被替换为 ";"，
// 字段与方法签名原样保留。
func typeSignature(node *sitter.Node, src []byte) string {
	type span struct{ start, end uint32 }
	var cuts []span

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			if member.Type() != "method_declaration" {
				continue
			}
			if methodBody := member.ChildByFieldName("body"); methodBody != nil {
				cuts = append(cuts, span{methodBody.StartByte(), methodBody.EndByte()})
			}
		}
	}

	var sb strings.Builder
	pos := node.StartByte()
	for _, cut := range cuts {
		sb.Write(src[pos:cut.start])
		sb.WriteString(";")
		pos = cut.end
	}
	sb.Write(src[pos:node.EndByte()])
	return sb.String()
}

// createCodeChunk 把代码单元转换为知识块，内容带文件与符号描述头。
func createCodeChunk(unit codeUnit, filePath string, index int) model.KnowledgeChunk {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("// File: %s\n", filePath))
	if unit.parent != "" {
		sb.WriteString(fmt.Sprintf("// Context: %s\n", unit.parent))
	}
	sb.WriteString(fmt.Sprintf("// %s: %s\n\n", unit.kind, unit.name))
	sb.WriteString(unit.content)

	chunk := newChunk(sb.String(), filePath, model.FileTypeCode, "Java", index)
	chunk.SymbolName = unit.name
	chunk.SymbolKind = unit.kind
	chunk.ParentSymbol = unit.parent
	chunk.StartLine = unit.startLine
	chunk.EndLine = unit.endLine
	return chunk
}
