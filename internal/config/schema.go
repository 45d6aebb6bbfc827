package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE string

// validateSchema unifies the YAML document with #Config and requires the
// result to be concrete. The document is extracted through CUE's YAML
// encoder so errors point at lines of filename.
func validateSchema(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile embedded schema: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return &ValidationError{Code: ErrCodeSyntax, Message: err.Error()}
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return newSchemaError(err, filename)
	}

	unified := value.Unify(schema.LookupPath(cue.ParsePath("#Config")))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return newSchemaError(err, filename)
	}
	return nil
}

// newSchemaError flattens CUE's error list into one ValidationError. The
// field and line of the first error are kept for callers that only report
// one.
func newSchemaError(err error, filename string) *ValidationError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Code: ErrCodeSchema, Message: err.Error()}
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return &ValidationError{
		Code:    ErrCodeSchema,
		Field:   strings.Join(errs[0].Path(), "."),
		Line:    documentLine(errs[0], filename),
		Message: strings.Join(msgs, "; "),
	}
}

// documentLine returns the line in filename an error refers to, or 0 when
// it only has positions inside the schema.
func documentLine(e cueerrors.Error, filename string) int {
	positions := append([]token.Pos{e.Position()}, e.InputPositions()...)
	for _, pos := range positions {
		if pos.IsValid() && pos.Filename() == filename {
			return pos.Line()
		}
	}
	return 0
}
