package extract

import (
	"context"
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

// PythonExtractor extracts classes and functions from Python source.
//
// Thread Safety:
//
//	PythonExtractor is safe for concurrent use. Each Extract call creates
//	its own tree-sitter parser instance internally.
type PythonExtractor struct {
	maxFileSize int64
}

// PythonOption configures a PythonExtractor.
type PythonOption func(*PythonExtractor)

// WithPythonMaxFileSize sets the maximum file size the extractor accepts.
func WithPythonMaxFileSize(bytes int64) PythonOption {
	return func(e *PythonExtractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// NewPythonExtractor creates a PythonExtractor with the given options.
func NewPythonExtractor(opts ...PythonOption) *PythonExtractor {
	e := &PythonExtractor{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Language returns "python".
func (e *PythonExtractor) Language() string { return "python" }

// Extensions returns the Python source and stub extensions.
func (e *PythonExtractor) Extensions() []string { return []string{".py", ".pyi"} }

// Extract implements Extractor.
func (e *PythonExtractor) Extract(ctx context.Context, content []byte, filePath string) (*datatypes.FileTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled before start: %w", err)
	}
	if int64(len(content)) > e.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), e.maxFileSize)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	result := &datatypes.FileTree{
		File:     filePath,
		Code:     string(content),
		Children: []*datatypes.ParsedNode{},
	}
	if root == nil {
		return result, nil
	}

	result.Children = e.extractBody(root, content)
	return result, nil
}

// extractBody walks the statements of a module, class body, or function
// body and returns the structural children in source order. Statements that
// are not class or function definitions carry no structure and are dropped.
func (e *PythonExtractor) extractBody(body *sitter.Node, content []byte) []*datatypes.ParsedNode {
	var children []*datatypes.ParsedNode
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "class_definition":
			if node := e.extractClass(child, content); node != nil {
				children = append(children, node)
			}
		case "function_definition":
			if node := e.extractFunction(child, content); node != nil {
				children = append(children, node)
			}
		case "decorated_definition":
			// The decorator wrapper contributes nothing structural; descend
			// to the wrapped definition.
			if def := child.ChildByFieldName("definition"); def != nil {
				switch def.Type() {
				case "class_definition":
					if node := e.extractClass(def, content); node != nil {
						children = append(children, node)
					}
				case "function_definition":
					if node := e.extractFunction(def, content); node != nil {
						children = append(children, node)
					}
				}
			}
		}
	}
	return children
}

func (e *PythonExtractor) extractClass(node *sitter.Node, content []byte) *datatypes.ParsedNode {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	parsed := &datatypes.ParsedNode{
		Type:       datatypes.TypeClass,
		Name:       text(nameNode, content),
		Lineno:     int(node.StartPoint().Row + 1),
		Code:       text(node, content),
		Parameters: []string{},
	}
	if body := node.ChildByFieldName("body"); body != nil {
		parsed.Children = e.extractBody(body, content)
	}
	return parsed
}

func (e *PythonExtractor) extractFunction(node *sitter.Node, content []byte) *datatypes.ParsedNode {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	// The async keyword is a plain child of function_definition in
	// tree-sitter-python.
	nodeType := datatypes.TypeFunction
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			nodeType = datatypes.TypeAsyncFunction
			break
		}
	}

	parsed := &datatypes.ParsedNode{
		Type:       nodeType,
		Name:       text(nameNode, content),
		Lineno:     int(node.StartPoint().Row + 1),
		Code:       text(node, content),
		Parameters: pythonParameterNames(node.ChildByFieldName("parameters"), content),
	}
	if body := node.ChildByFieldName("body"); body != nil {
		parsed.Children = e.extractBody(body, content)
	}
	return parsed
}

// pythonParameterNames pulls the bare parameter names out of a parameters
// node, looking through type annotations and defaults.
func pythonParameterNames(params *sitter.Node, content []byte) []string {
	names := []string{}
	if params == nil {
		return names
	}
	for i := 0; i < int(params.ChildCount()); i++ {
		child := params.Child(i)
		switch child.Type() {
		case "identifier":
			names = append(names, text(child, content))
		case "typed_parameter", "default_parameter", "typed_default_parameter",
			"list_splat_pattern", "dictionary_splat_pattern":
			if id := firstIdentifier(child); id != nil {
				names = append(names, text(id, content))
			}
		}
	}
	return names
}

func firstIdentifier(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "identifier" {
			return child
		}
	}
	return nil
}

func text(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}
