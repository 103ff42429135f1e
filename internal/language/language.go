package language

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and links SDL sources into an executable schema.
func LoadSchema(sources ...*Source) (*Schema, error) {
	sch, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, err
	}
	return sch, nil
}

// Validate runs the spec validation rules for doc against schema.
func Validate(schema *Schema, doc *QueryDocument) []error {
	list := validator.Validate(schema, doc)
	if len(list) == 0 {
		return nil
	}
	errs := make([]error, len(list))
	for i, e := range list {
		errs[i] = e
	}
	return errs
}
