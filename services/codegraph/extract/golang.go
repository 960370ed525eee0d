package extract

import (
	"context"
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

// GoExtractor extracts types and functions from Go source. Struct and
// interface declarations become class nodes; methods nest under the class
// of their receiver type when it is declared in the same file.
//
// Thread Safety:
//
//	GoExtractor is safe for concurrent use.
type GoExtractor struct {
	maxFileSize int64
}

// GoOption configures a GoExtractor.
type GoOption func(*GoExtractor)

// WithGoMaxFileSize sets the maximum file size the extractor accepts.
func WithGoMaxFileSize(bytes int64) GoOption {
	return func(e *GoExtractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// NewGoExtractor creates a GoExtractor with the given options.
func NewGoExtractor(opts ...GoOption) *GoExtractor {
	e := &GoExtractor{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Language returns "go".
func (e *GoExtractor) Language() string { return "go" }

// Extensions returns the Go source extension.
func (e *GoExtractor) Extensions() []string { return []string{".go"} }

// Extract implements Extractor.
func (e *GoExtractor) Extract(ctx context.Context, content []byte, filePath string) (*datatypes.FileTree, error) {
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
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	result := &datatypes.FileTree{
		File:     filePath,
		Code:     string(content),
		Children: []*datatypes.ParsedNode{},
	}
	root := tree.RootNode()
	if root == nil {
		return result, nil
	}

	// First pass: types and plain functions, preserving source order.
	// classesByName lets the second pass nest methods under receivers.
	classesByName := map[string]*datatypes.ParsedNode{}
	var methods []*sitter.Node

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "type_declaration":
			for _, class := range e.extractTypes(child, content) {
				classesByName[class.Name] = class
				result.Children = append(result.Children, class)
			}
		case "function_declaration":
			if fn := e.extractFunction(child, content); fn != nil {
				result.Children = append(result.Children, fn)
			}
		case "method_declaration":
			methods = append(methods, child)
		}
	}

	// Second pass: methods nest under their receiver's class node when the
	// type is declared in this file, otherwise they surface as top-level
	// functions.
	for _, m := range methods {
		fn := e.extractFunction(m, content)
		if fn == nil {
			continue
		}
		if class, ok := classesByName[receiverTypeName(m, content)]; ok {
			class.Children = append(class.Children, fn)
		} else {
			result.Children = append(result.Children, fn)
		}
	}

	return result, nil
}

// extractTypes returns a class node for each struct or interface spec in a
// type declaration. Other type specs (aliases, named basic types) carry no
// structure and are dropped.
func (e *GoExtractor) extractTypes(decl *sitter.Node, content []byte) []*datatypes.ParsedNode {
	var classes []*datatypes.ParsedNode
	for i := 0; i < int(decl.ChildCount()); i++ {
		spec := decl.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}
		switch typeNode.Type() {
		case "struct_type", "interface_type":
			classes = append(classes, &datatypes.ParsedNode{
				Type:       datatypes.TypeClass,
				Name:       text(nameNode, content),
				Lineno:     int(decl.StartPoint().Row + 1),
				Code:       text(decl, content),
				Parameters: []string{},
			})
		}
	}
	return classes
}

func (e *GoExtractor) extractFunction(node *sitter.Node, content []byte) *datatypes.ParsedNode {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	return &datatypes.ParsedNode{
		Type:       datatypes.TypeFunction,
		Name:       text(nameNode, content),
		Lineno:     int(node.StartPoint().Row + 1),
		Code:       text(node, content),
		Parameters: goParameterNames(node.ChildByFieldName("parameters"), content),
	}
}

// receiverTypeName resolves the bare type name of a method receiver,
// looking through a pointer if present.
func receiverTypeName(method *sitter.Node, content []byte) string {
	receiver := method.ChildByFieldName("receiver")
	if receiver == nil {
		return ""
	}
	for i := 0; i < int(receiver.ChildCount()); i++ {
		decl := receiver.Child(i)
		if decl.Type() != "parameter_declaration" {
			continue
		}
		typeNode := decl.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		if typeNode.Type() == "pointer_type" {
			for j := 0; j < int(typeNode.ChildCount()); j++ {
				if typeNode.Child(j).Type() == "type_identifier" {
					return text(typeNode.Child(j), content)
				}
			}
			continue
		}
		if typeNode.Type() == "type_identifier" {
			return text(typeNode, content)
		}
	}
	return ""
}

// goParameterNames collects parameter names from a parameter_list. A single
// declaration may bind several names ("a, b int").
func goParameterNames(params *sitter.Node, content []byte) []string {
	names := []string{}
	if params == nil {
		return names
	}
	for i := 0; i < int(params.ChildCount()); i++ {
		decl := params.Child(i)
		if decl.Type() != "parameter_declaration" && decl.Type() != "variadic_parameter_declaration" {
			continue
		}
		for j := 0; j < int(decl.ChildCount()); j++ {
			child := decl.Child(j)
			if child.Type() == "identifier" {
				names = append(names, text(child, content))
			}
		}
	}
	return names
}
