package command

import (
	"context"
	"fmt"
	"regexp"

	"github.com/newtron-network/ctlsh/pkg/grammar"
	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// Validation checks a field value while a line is matched, after the
// field's type checks. It returns the value to bind. A failed validation
// means the field does not match, so enclosing optional and choice nodes
// may try something else.
type Validation interface {
	Validate(req *ValidationRequest) (interface{}, error)
}

// ValidationFunc adapts a function to Validation.
type ValidationFunc func(req *ValidationRequest) (interface{}, error)

func (f ValidationFunc) Validate(req *ValidationRequest) (interface{}, error) { return f(req) }

// ValidationRequest is what a validation sees.
type ValidationRequest struct {
	Ctx     context.Context
	Models  *model.Registry
	Field   *grammar.Field
	ObjType *model.ObjectType // the command's obj-type, if any
	Value   interface{}

	// Backend is nil when the line is only parsed, as by Match, Bind and
	// completion. Validations that need stored objects accept the value
	// then.
	Backend store.Backend
}

var builtinValidations = map[string]Validation{
	"validate-identifier":   ValidationFunc(validateIdentifier),
	"validate-existing-obj": ValidationFunc(validateExistingObj),
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][-\w.]*$`)

// validateIdentifier accepts names usable as aliases: a letter or
// underscore, then letters, digits, '-', '_' or '.'. The negation keyword
// is reserved.
func validateIdentifier(req *ValidationRequest) (interface{}, error) {
	word := model.FormatValue(req.Value)
	if !identifierPattern.MatchString(word) {
		return nil, util.NewArgumentValidationError(
			fmt.Sprintf("%s: invalid characters in identifier %q", req.Field.Name, word))
	}
	if word == NegationWord {
		return nil, util.NewArgumentValidationError(
			fmt.Sprintf("%s: reserved word %q", req.Field.Name, word))
	}
	return req.Value, nil
}

// validateExistingObj accepts the value only when an object of the
// field's "other" type has it as primary key, directly or through an
// alias.
func validateExistingObj(req *ValidationRequest) (interface{}, error) {
	if req.Backend == nil {
		return req.Value, nil
	}
	f := req.Field
	if f.Other == "" {
		return nil, util.NewInvocationError("%s: validate-existing-obj needs other", f.Name)
	}
	t, ok := req.Models.Lookup(f.Other)
	if !ok {
		return nil, util.NewInternalError("unknown obj-type %q", f.Other)
	}

	key := model.FormatValue(req.Value)
	if t.Alias != "" && !isIdentifierForm(f.Type, key) {
		target, err := lookupAlias(req.Ctx, req.Backend, req.Models, t, key)
		if err != nil {
			return nil, err
		}
		if target != "" {
			key = target
		}
	}
	if pk, ok := t.Field(t.PrimaryKey); ok {
		key = pk.Fold(key)
	}

	rows, err := req.Backend.Query(req.Ctx, t.Name, map[string]interface{}{t.PrimaryKey: key})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		title := t.Title
		if title == "" {
			title = t.Name
		}
		return nil, util.NewArgumentValidationError(
			fmt.Sprintf("%s: %s %q doesn't exist", f.Name, title, model.FormatValue(req.Value)))
	}
	return req.Value, nil
}
