package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/newtron-network/ctlsh/pkg/grammar"
	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// DefaultTagNamespace is used when a tag is written without a namespace.
const DefaultTagNamespace = "default"

var builtinHandlers = map[string]DataHandler{
	"alias-to-value":            DataHandlerFunc(aliasToValue),
	"convert-tag-to-parts":      DataHandlerFunc(convertTagToParts),
	"warn-missing-interface":    DataHandlerFunc(warnMissingInterface),
	"enable-disable-to-boolean": DataHandlerFunc(enableDisableToBoolean),
}

// aliasToValue replaces an alias with the identifier it names. The
// field's "other" attribute names the object type whose alias table is
// searched. Values already in identifier form are bound unchanged.
func aliasToValue(inv *Invocation, f *grammar.Field, value interface{}) error {
	word := model.FormatValue(value)
	if f.Other == "" || isIdentifierForm(f.Type, word) {
		inv.Data[f.Name] = value
		return nil
	}
	t, ok := inv.Models().Lookup(f.Other)
	if !ok || t.Alias == "" {
		inv.Data[f.Name] = value
		return nil
	}
	target, err := resolveAlias(inv, t, word)
	if err != nil {
		return err
	}
	if target == "" {
		if f.Type == grammar.FieldDPID || f.Type == grammar.FieldHost {
			return util.NewSemanticError("no %s named %q", t.Alias, word)
		}
		target = word
	}
	inv.Data[f.Name] = target
	return nil
}

func isIdentifierForm(t grammar.FieldType, word string) bool {
	switch t {
	case grammar.FieldDPID:
		return dpidPattern.MatchString(word)
	case grammar.FieldHost:
		return macPattern.MatchString(word)
	}
	return false
}

// resolveAlias returns the identifier aliased by name, or "" when there
// is no such alias.
func resolveAlias(inv *Invocation, t *model.ObjectType, name string) (string, error) {
	return lookupAlias(inv.Ctx, inv.Backend(), inv.Models(), t, name)
}

func lookupAlias(ctx context.Context, b store.Backend, models *model.Registry, t *model.ObjectType, name string) (string, error) {
	aliasType, _ := models.Lookup(t.Alias)
	field, err := models.AliasField(t.Name)
	if err != nil {
		return "", err
	}
	rows, err := b.Query(ctx, t.Alias, map[string]interface{}{aliasType.PrimaryKey: name})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return model.FormatValue(rows[0][field]), nil
}

// convertTagToParts splits "[namespace.]name=value" into three keys. The
// key names come from handler-args namespace-key, name-key and value-key.
func convertTagToParts(inv *Invocation, f *grammar.Field, value interface{}) error {
	nsKey, nameKey, valueKey := "namespace", "name", "value"
	if k := f.HandlerArgs["namespace-key"]; k != "" {
		nsKey = k
	}
	if k := f.HandlerArgs["name-key"]; k != "" {
		nameKey = k
	}
	if k := f.HandlerArgs["value-key"]; k != "" {
		valueKey = k
	}

	ns, name, val, err := SplitTag(model.FormatValue(value))
	if err != nil {
		return err
	}
	inv.Data[nsKey] = ns
	inv.Data[nameKey] = name
	inv.Data[valueKey] = val
	return nil
}

// SplitTag parses "[namespace.]name=value". The namespace is everything
// before the last dot of the left-hand side.
func SplitTag(s string) (namespace, name, value string, err error) {
	bad := util.NewArgumentValidationError("tag <[tag-namespace.]name>=<value>")
	if strings.Count(s, "=") != 1 {
		return "", "", "", bad
	}
	left, value, _ := strings.Cut(s, "=")
	namespace = DefaultTagNamespace
	name = left
	if i := strings.LastIndex(left, "."); i >= 0 {
		namespace, name = left[:i], left[i+1:]
	}
	if namespace == "" || name == "" || value == "" {
		return "", "", "", bad
	}
	return namespace, name, value, nil
}

// FormatTag is the inverse of SplitTag.
func FormatTag(namespace, name, value string) string {
	if namespace == "" {
		namespace = DefaultTagNamespace
	}
	return fmt.Sprintf("%s.%s=%s", namespace, name, value)
}

// warnMissingInterface binds an interface name and warns, without
// failing, when the scoped switch does not have that interface.
func warnMissingInterface(inv *Invocation, f *grammar.Field, value interface{}) error {
	inv.Data[f.Name] = value
	if inv.Negated {
		return nil
	}
	scope := f.Scoped
	if scope == "" {
		scope = "dpid"
	}
	dpid := inv.Data[scope]
	if dpid == nil {
		return nil
	}

	switches, err := inv.Backend().Query(inv.Ctx, "switch-config", map[string]interface{}{"dpid": dpid})
	if err != nil {
		return err
	}
	if len(switches) == 0 {
		inv.Warnf("switch %s does not exist", model.FormatValue(dpid))
		return nil
	}
	ports, err := inv.Backend().Query(inv.Ctx, "port", map[string]interface{}{"dpid": dpid})
	if err != nil {
		return err
	}
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		n := model.FormatValue(p["name"])
		if n == model.FormatValue(value) {
			return nil
		}
		names = append(names, n)
	}
	if len(names) == 0 {
		inv.Warnf("switch %s has no interface %s", model.FormatValue(dpid), model.FormatValue(value))
		return nil
	}
	inv.Warnf("switch %s has no interface %s (known: %s)",
		model.FormatValue(dpid), model.FormatValue(value), strings.Join(util.CompressRanges(names), ", "))
	return nil
}

// enableDisableToBoolean binds "enable" as true and "disable" as false.
func enableDisableToBoolean(inv *Invocation, f *grammar.Field, value interface{}) error {
	switch strings.ToLower(model.FormatValue(value)) {
	case "enable":
		inv.Data[f.Name] = true
	case "disable":
		inv.Data[f.Name] = false
	default:
		return util.NewArgumentValidationError(
			fmt.Sprintf("%s: %q is not enable or disable", f.Name, model.FormatValue(value)), "enable", "disable")
	}
	return nil
}

// rowsValues returns the distinct text values of field across rows.
func rowsValues(rows []store.Row, field string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		v, ok := r[field]
		if !ok || v == nil {
			continue
		}
		s := model.FormatValue(v)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
