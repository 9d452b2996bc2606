package validator

// =============================================================================
// CRASH EARLY, CRASH LOUD
// =============================================================================
//
// The CUE schemas are the contract guard between the front-end and the
// lowering core, and between the core and the fact consumers (SQLite export,
// policy rules).
//
// Without validation a renamed key or a wrong type silently becomes a zero
// value: a field without "msb" lowers as a one-bit field, a property spelled
// "sw_access" is ignored and the field turns read-write.
//
// When validation fails, fix the producer. Do not widen the schema to make
// the error go away.
// =============================================================================

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue facts_schema.cue
var schemaFS embed.FS

// Validator validates the elaborated register-map tree against the input
// schema
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New creates a new Validator with the embedded CUE schema
func New() (*Validator, error) {
	ctx, schema, err := compile("schema.cue")
	if err != nil {
		return nil, err
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

func compile(name string) (*cue.Context, cue.Value, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, cue.Value{}, fmt.Errorf("loading embedded schema %s: %w", name, err)
	}

	schema := ctx.CompileBytes(schemaBytes, cue.Filename(name))
	if schema.Err() != nil {
		return nil, cue.Value{}, fmt.Errorf("compiling schema %s: %w", name, schema.Err())
	}
	return ctx, schema, nil
}

// Validate checks that data, once marshaled to JSON, conforms to #Input
func (v *Validator) Validate(data any) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON validates JSON bytes directly against #Input
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	unified, err := unify(v.ctx, v.schema, "#Input", jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ValidationErrors returns every validation error of the JSON input, one
// message per error, or nil when it is valid
func (v *Validator) ValidationErrors(jsonBytes []byte) []string {
	unified, err := unify(v.ctx, v.schema, "#Input", jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

func unify(ctx *cue.Context, schema cue.Value, def string, jsonBytes []byte) (cue.Value, error) {
	dataValue := ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	defValue := schema.LookupPath(cue.ParsePath(def))
	if defValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("looking up %s definition: %w", def, defValue.Err())
	}

	return defValue.Unify(dataValue), nil
}

// FactsValidator validates relational fact tables against the facts schema.
type FactsValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewFactsValidator creates a validator for relational fact tables.
func NewFactsValidator() (*FactsValidator, error) {
	ctx, schema, err := compile("facts_schema.cue")
	if err != nil {
		return nil, err
	}
	return &FactsValidator{ctx: ctx, schema: schema}, nil
}

// Validate checks that the fact tables conform to #FactTables.
func (v *FactsValidator) Validate(data any) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling facts to JSON: %w", err)
	}

	unified, err := unify(v.ctx, v.schema, "#FactTables", jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("facts schema validation failed: %w", err)
	}
	return nil
}
