package command

import (
	"strings"

	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/util"
)

var builtinCompleters = map[string]Completer{
	"complete-object-field": CompleterFunc(completeObjectField),
	"complete-alias-choice": CompleterFunc(completeAliasChoice),
	"complete-from-another": CompleterFunc(completeFromAnother),
	"complete-tag-mapping":  CompleterFunc(completeTagMapping),
}

// splitOther parses a field's "other" attribute: "obj-type" or
// "obj-type|field".
func splitOther(other string) (objType, field string) {
	objType, field, _ = strings.Cut(other, "|")
	return objType, field
}

// scopeFilter restricts a completion query to rows whose scoped field
// equals the value already bound for it.
func scopeFilter(req *CompletionRequest) map[string]interface{} {
	if req.Field.Scoped == "" {
		return nil
	}
	v, ok := req.Data[req.Field.Scoped]
	if !ok || v == nil {
		return nil
	}
	return map[string]interface{}{req.Field.Scoped: v}
}

// completeObjectField lists the values the field has across the rows of
// its object type: "other" when it names one, else the command's.
func completeObjectField(req *CompletionRequest) ([]string, error) {
	objType, field := splitOther(req.Field.Other)
	if objType == "" {
		objType = req.ObjType
	}
	if field == "" {
		field = req.Field.Name
	}
	t, ok := req.Models.Lookup(objType)
	if !ok {
		return nil, nil
	}
	if !t.HasField(field) {
		// "other" named a related type; its primary key is the value.
		field = t.PrimaryKey
	}
	rows, err := req.Backend.Query(req.Ctx, objType, scopeFilter(req))
	if err != nil {
		return nil, err
	}
	return rowsValues(rows, field), nil
}

// completeAliasChoice lists the aliases defined for "other".
func completeAliasChoice(req *CompletionRequest) ([]string, error) {
	objType, _ := splitOther(req.Field.Other)
	t, ok := req.Models.Lookup(objType)
	if !ok || t.Alias == "" {
		return nil, nil
	}
	aliasType, ok := req.Models.Lookup(t.Alias)
	if !ok {
		return nil, util.NewInternalError("alias type %q not registered", t.Alias)
	}
	rows, err := req.Backend.Query(req.Ctx, t.Alias, nil)
	if err != nil {
		return nil, err
	}
	return rowsValues(rows, aliasType.PrimaryKey), nil
}

// completeFromAnother lists a field of another object type, named by
// "other" as "obj-type|field", optionally scoped by a bound field.
func completeFromAnother(req *CompletionRequest) ([]string, error) {
	objType, field := splitOther(req.Field.Other)
	if objType == "" || field == "" {
		return nil, util.NewCompletionError("field %q: other must be obj-type|field", req.Field.Name)
	}
	rows, err := req.Backend.Query(req.Ctx, objType, scopeFilter(req))
	if err != nil {
		return nil, err
	}
	return rowsValues(rows, field), nil
}

// completeTagMapping lists existing tags as "namespace.name=value".
func completeTagMapping(req *CompletionRequest) ([]string, error) {
	rows, err := req.Backend.Query(req.Ctx, "tag", nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, FormatTag(
			model.FormatValue(r["namespace"]),
			model.FormatValue(r["name"]),
			model.FormatValue(r["value"]),
		))
	}
	return out, nil
}
