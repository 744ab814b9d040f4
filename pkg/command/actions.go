package command

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/newtron-network/ctlsh/pkg/audit"
	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/runconfig"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
	"github.com/newtron-network/ctlsh/pkg/version"
)

// ErrExit is returned by pop-mode-stack when there is no mode left to
// leave; the shell ends the session.
var ErrExit = errors.New("exit")

var builtinActions = map[string]Action{
	"query-table":     ActionFunc(queryTable),
	"query-rest":      ActionFunc(queryRest),
	"display":         ActionFunc(display),
	"display-table":   ActionFunc(displayTable),
	"display-rest":    ActionFunc(displayRest),
	"update-config":   ActionFunc(updateConfig),
	"write-object":    ActionFunc(writeObject),
	"create-alias":    ActionFunc(createAlias),
	"delete-objects":  ActionFunc(deleteObjects),
	"push-mode-stack": ActionFunc(pushModeStack),
	"pop-mode-stack":  ActionFunc(popModeStack),
	"running-config":  ActionFunc(runningConfig),
	"version":         ActionFunc(showVersion),
}

// objectType returns the model of the object type the action works on.
func (inv *Invocation) objectType() (*model.ObjectType, error) {
	name := inv.ObjType()
	if name == "" {
		return nil, util.NewInvocationError("%s: %s needs an obj-type", inv.Command.Name, inv.Action.Proc)
	}
	t, ok := inv.Models().Lookup(name)
	if !ok {
		return nil, util.NewInternalError("unknown obj-type %q", name)
	}
	return t, nil
}

// modelFields returns the bound values that are fields of t. Reset
// values are kept, as nil, only when keepReset is set.
func (inv *Invocation) modelFields(t *model.ObjectType, keepReset bool) store.Row {
	row := store.Row{}
	for k, v := range inv.Data {
		if !t.HasField(k) || (v == nil && !keepReset) {
			continue
		}
		row[k] = v
	}
	return row
}

// mergeParent binds the command's parent field to the object of the
// submode the command runs in.
func (inv *Invocation) mergeParent(row store.Row) {
	if inv.Command.ParentField == "" {
		return
	}
	if f := inv.Session.Current(); f.ObjID != "" {
		row[inv.Command.ParentField] = f.ObjID
	}
}

// prepareRow enforces the edit policy and converts values to the field
// types, applying case folding to strings.
func prepareRow(t *model.ObjectType, row store.Row) (store.Row, error) {
	out := make(store.Row, len(row))
	for k, v := range row {
		f, ok := t.Field(k)
		if !ok {
			continue
		}
		if !t.Editable(k) && !t.IsKeyField(k) {
			return nil, util.NewSemanticError("%s: field %s cannot be changed", t.Name, k)
		}
		if s, isString := v.(string); isString {
			v = f.Fold(s)
		}
		c, err := f.Coerce(v)
		if err != nil {
			return nil, util.NewArgumentValidationError(fmt.Sprintf("%s: %v", k, err))
		}
		out[k] = c
	}
	return out, nil
}

// changedFields returns the fields of want that differ from have.
func changedFields(t *model.ObjectType, have, want store.Row) store.Row {
	t.Normalize(have)
	changed := store.Row{}
	for k, v := range want {
		old, present := have[k]
		switch {
		case v == nil && (!present || old == nil):
		case v != nil && present && old != nil && model.FormatValue(old) == model.FormatValue(v):
		default:
			changed[k] = v
		}
	}
	return changed
}

func withoutNil(row store.Row) store.Row {
	out := make(store.Row, len(row))
	for k, v := range row {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

func (inv *Invocation) create(t *model.ObjectType, key string, row store.Row) error {
	start := time.Now()
	err := inv.Backend().Create(inv.Ctx, t.Name, t.PrimaryKey, row)
	inv.recordWrite(t.Name, audit.OpCreate, key, row, start, err)
	store.ClearCache(inv.Backend())
	return err
}

func (inv *Invocation) update(t *model.ObjectType, key string, fields store.Row) error {
	start := time.Now()
	err := inv.Backend().Update(inv.Ctx, t.Name, t.PrimaryKey, key, fields)
	inv.recordWrite(t.Name, audit.OpUpdate, key, fields, start, err)
	store.ClearCache(inv.Backend())
	return err
}

func (inv *Invocation) remove(t *model.ObjectType, key string) error {
	start := time.Now()
	err := inv.Backend().Delete(inv.Ctx, t.Name, map[string]interface{}{t.PrimaryKey: key})
	inv.recordWrite(t.Name, audit.OpDelete, key, nil, start, err)
	store.ClearCache(inv.Backend())
	return err
}

// lookupRows returns the rows of t whose primary key is key.
func (inv *Invocation) lookupRows(t *model.ObjectType, key string) ([]store.Row, error) {
	return inv.Backend().Query(inv.Ctx, t.Name, map[string]interface{}{t.PrimaryKey: key})
}

// hasChildren reports whether any row references the t instance key.
func (inv *Invocation) hasChildren(t *model.ObjectType, key string) (bool, error) {
	for _, ref := range inv.Models().Children(t.Name) {
		rows, err := inv.Backend().Query(inv.Ctx, ref.Child, map[string]interface{}{ref.Field: key})
		if err != nil {
			return false, err
		}
		if len(rows) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// updateConfig writes the bound fields of a singleton-style object, or
// of the object the current submode is scoped to. The negated form, and
// fields bound to Reset, revert to the declared defaults. A row left
// holding only defaults is removed.
func updateConfig(inv *Invocation) error {
	t, err := inv.objectType()
	if err != nil {
		return err
	}
	fields := inv.modelFields(t, true)
	inv.mergeParent(fields)
	for k := range fields {
		if t.IsKeyField(k) {
			continue
		}
		if inv.Negated || fields[k] == nil {
			f, _ := t.Field(k)
			fields[k] = nil
			if !f.NullAllowed {
				fields[k] = f.Default
			}
		}
	}

	key, ok := t.BuildKey(fields)
	if !ok {
		return util.NewInvocationError("%s: %s must be set", t.Name, t.PrimaryKey)
	}
	fields[t.PrimaryKey] = key
	row, err := prepareRow(t, fields)
	if err != nil {
		return err
	}

	existing, err := inv.lookupRows(t, key)
	if err != nil {
		return err
	}
	switch len(existing) {
	case 0:
		if t.AllDefault(row) {
			util.WithObjType(t.Name).Debugf("%s: all defaults, nothing to write", key)
			return nil
		}
		return inv.create(t, key, withoutNil(row))
	case 1:
	default:
		return util.NewInternalError("%s: %d rows with %s %s", t.Name, len(existing), t.PrimaryKey, key)
	}

	cur := existing[0].Clone()
	changed := changedFields(t, cur, row)
	merged := cur.Clone()
	for k, v := range changed {
		merged[k] = v
	}
	if t.AllDefault(merged) && !inv.inSubmodeOf(t, key) {
		busy, err := inv.hasChildren(t, key)
		if err != nil {
			return err
		}
		if !busy {
			return inv.remove(t, key)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return inv.update(t, key, changed)
}

// inSubmodeOf reports whether the session is in the submode of the t
// instance key. That object outlives its own defaults until it is
// deleted explicitly.
func (inv *Invocation) inSubmodeOf(t *model.ObjectType, key string) bool {
	f := inv.Session.Current()
	return f.ObjType == t.Name && f.ObjID == key
}

// writeObject creates or updates the object named by the bound fields.
func writeObject(inv *Invocation) error {
	t, err := inv.objectType()
	if err != nil {
		return err
	}
	_, err = inv.writeObject(t)
	return err
}

func (inv *Invocation) writeObject(t *model.ObjectType) (string, error) {
	row := inv.modelFields(t, false)
	inv.mergeParent(row)
	key, ok := t.BuildKey(row)
	if !ok {
		return "", util.NewInvocationError("%s: %s must be set", t.Name, t.PrimaryKey)
	}
	row[t.PrimaryKey] = key
	row, err := prepareRow(t, row)
	if err != nil {
		return "", err
	}

	existing, err := inv.lookupRows(t, key)
	if err != nil {
		return "", err
	}
	if len(existing) == 0 {
		return key, inv.create(t, key, row)
	}
	changed := changedFields(t, existing[0].Clone(), row)
	if len(changed) == 0 {
		return key, nil
	}
	return key, inv.update(t, key, changed)
}

// createAlias attaches the bound alias to the object of the current
// submode. An object has at most one alias: its previous alias is
// replaced, and an alias of the same name held by another object moves.
func createAlias(inv *Invocation) error {
	t, err := inv.objectType()
	if err != nil {
		return err
	}
	frame := inv.Session.Current()
	if frame.ObjID == "" {
		return util.NewInvocationError("%s: create-alias needs an object submode", inv.Command.Name)
	}
	fk, err := inv.Models().AliasField(frame.ObjType)
	if err != nil {
		return err
	}
	alias, _ := inv.Data[t.PrimaryKey].(string)
	if alias == "" {
		return util.NewInvocationError("%s: %s must be set", t.Name, t.PrimaryKey)
	}

	held, err := inv.lookupRows(t, alias)
	if err != nil {
		return err
	}
	for _, r := range held {
		owner := model.FormatValue(r[fk])
		if owner == frame.ObjID {
			return nil
		}
		inv.Warnf("Removed alias '%s' from %s '%s'", alias, frame.ObjType, owner)
		if err := inv.remove(t, alias); err != nil {
			return err
		}
	}

	previous, err := inv.Backend().Query(inv.Ctx, t.Name, map[string]interface{}{fk: frame.ObjID})
	if err != nil {
		return err
	}
	for i, r := range previous {
		old := model.FormatValue(r[t.PrimaryKey])
		if i > 0 {
			inv.Warnf("Removed additional alias '%s', also refers to %s '%s'", old, frame.ObjType, frame.ObjID)
		}
		util.WithObjType(t.Name).Debugf("replace alias %s of %s", old, frame.ObjID)
		if err := inv.remove(t, old); err != nil {
			return err
		}
	}

	row, err := prepareRow(t, store.Row{t.PrimaryKey: alias, fk: frame.ObjID})
	if err != nil {
		return err
	}
	return inv.create(t, alias, row)
}

// deleteObjects removes the rows matching the bound fields, with their
// cascading children.
func deleteObjects(inv *Invocation) error {
	t, err := inv.objectType()
	if err != nil {
		return err
	}
	filter := inv.modelFields(t, false)
	inv.mergeParent(filter)
	for k, v := range filter {
		if s, isString := v.(string); isString {
			f, _ := t.Field(k)
			filter[k] = f.Fold(s)
		}
	}

	rows, err := inv.Backend().Query(inv.Ctx, t.Name, filter)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return util.NewSemanticError("no such %s", t.Name)
	}
	for _, r := range rows {
		key := model.FormatValue(r[t.PrimaryKey])
		if err := inv.cascade(t, key); err != nil {
			return err
		}
		if err := inv.remove(t, key); err != nil {
			return err
		}
	}
	return nil
}

// cascade deletes the rows that reference the t instance key and are
// declared to go with it.
func (inv *Invocation) cascade(t *model.ObjectType, key string) error {
	for _, ref := range inv.Models().Children(t.Name) {
		if !ref.Cascade {
			continue
		}
		child, _ := inv.Models().Lookup(ref.Child)
		rows, err := inv.Backend().Query(inv.Ctx, ref.Child, map[string]interface{}{ref.Field: key})
		if err != nil {
			return err
		}
		for _, r := range rows {
			childKey := model.FormatValue(r[child.PrimaryKey])
			util.WithObjType(child.Name).Debugf("cascade delete %s (parent %s %s)", childKey, t.Name, key)
			if err := inv.cascade(child, childKey); err != nil {
				return err
			}
			if err := inv.remove(child, childKey); err != nil {
				return err
			}
		}
	}
	return nil
}

// pushModeStack enters the command's submode. With an object type the
// object is written first and the submode is scoped to it.
func pushModeStack(inv *Invocation) error {
	mode := inv.Command.SubmodeName
	if mode == "" {
		return util.NewInvocationError("%s: push-mode-stack needs submode-name", inv.Command.Name)
	}
	sess := inv.Session
	for sess.Depth() > 1 && !strings.HasPrefix(mode, sess.Mode()+"-") {
		sess.Pop()
	}

	if inv.ObjType() == "" {
		if sess.Mode() != mode {
			sess.Push(ModeFrame{Mode: mode})
			util.WithMode(mode).Debug("entered")
		}
		return nil
	}
	t, err := inv.objectType()
	if err != nil {
		return err
	}
	if !t.SubmodeEnabled() {
		return util.NewSemanticError("%s: submode is disabled", t.Name)
	}
	key, err := inv.writeObject(t)
	if err != nil {
		return err
	}
	sess.Push(ModeFrame{Mode: mode, ObjType: t.Name, ObjID: key})
	util.WithMode(mode).Debugf("entered for %s %s", t.Name, key)
	return nil
}

// popModeStack leaves the current mode, or every mode above the one
// named by the action's "to" data.
func popModeStack(inv *Invocation) error {
	if to, ok := inv.Param("to"); ok && to != nil {
		inv.Session.PopTo(model.FormatValue(to))
		return nil
	}
	if !inv.Session.Pop() {
		return ErrExit
	}
	util.WithMode(inv.Session.Mode()).Debug("returned")
	return nil
}

// queryTable reads the rows of the object type matching the bound fields.
func queryTable(inv *Invocation) error {
	t, err := inv.objectType()
	if err != nil {
		return err
	}
	rows, err := inv.Backend().Query(inv.Ctx, t.Name, inv.modelFields(t, false))
	if err != nil {
		return err
	}
	for _, r := range rows {
		t.Normalize(r)
	}
	store.SortByField(rows, t.PrimaryKey)
	inv.setResult(rows)
	return nil
}

var urlParam = regexp.MustCompile(`%\(([\w-]+)\)s`)

// expandURL substitutes %(name)s references with bound values.
func expandURL(tmpl string, data map[string]interface{}) (string, error) {
	var missing []string
	out := urlParam.ReplaceAllStringFunc(tmpl, func(ref string) string {
		name := urlParam.FindStringSubmatch(ref)[1]
		v, ok := data[name]
		if !ok || v == nil {
			missing = append(missing, name)
			return ref
		}
		return model.FormatValue(v)
	})
	if len(missing) > 0 {
		return "", util.NewInvocationError("url %q: %s not bound", tmpl, strings.Join(missing, ", "))
	}
	return out, nil
}

// queryRest fetches the action's URL and turns the JSON into rows.
func queryRest(inv *Invocation) error {
	if inv.Action.URL == "" {
		return util.NewInvocationError("%s: %s needs a url", inv.Command.Name, inv.Action.Proc)
	}
	path, err := expandURL(inv.Action.URL, inv.Data)
	if err != nil {
		return err
	}
	rg, ok := inv.Backend().(store.RawGetter)
	if !ok {
		return util.NewRestError("unsupported", "", "backend cannot fetch "+path)
	}
	v, err := rg.GetJSON(inv.Ctx, path)
	if err != nil {
		return err
	}

	var rows []store.Row
	switch v := v.(type) {
	case []interface{}:
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				rows = append(rows, store.Row(m))
			} else {
				rows = append(rows, store.Row{"value": item})
			}
		}
	case map[string]interface{}:
		rows = []store.Row{store.Row(v)}
	case nil:
	default:
		rows = []store.Row{{"value": v}}
	}
	inv.setResult(rows)
	return nil
}

func (inv *Invocation) setResult(rows []store.Row) {
	if rows == nil {
		rows = []store.Row{}
	}
	inv.Result = rows
}

// display prints the current result through the action's format, the
// command's format, or the object type's default format.
func display(inv *Invocation) error {
	name := inv.Action.Format
	if name == "" {
		name = inv.Command.Format
	}
	f, err := inv.Engine.formatFor(name, inv.ObjType(), inv.Result)
	if err != nil {
		return err
	}
	return inv.Engine.writeRows(inv.Out(), f, inv.Result)
}

func displayTable(inv *Invocation) error {
	if inv.Result == nil {
		if err := queryTable(inv); err != nil {
			return err
		}
	}
	return display(inv)
}

func displayRest(inv *Invocation) error {
	if inv.Result == nil {
		if err := queryRest(inv); err != nil {
			return err
		}
	}
	return display(inv)
}

// runningConfig prints the running configuration, or the entry selected
// by the "running-config" word with its optional argument.
func runningConfig(inv *Invocation) error {
	var words []string
	if name := inv.Data[runconfig.CommandToken]; name != nil {
		words = append(words, model.FormatValue(name))
		if w := inv.Data["word"]; w != nil {
			words = append(words, model.FormatValue(w))
		}
	}
	text, err := inv.Engine.RenderRunningConfig(inv.Ctx, words)
	if err != nil {
		return err
	}
	fmt.Fprint(inv.Out(), text)
	return nil
}

// showVersion prints the shell version and, when the backend can say,
// the controller's.
func showVersion(inv *Invocation) error {
	fmt.Fprintf(inv.Out(), "ctlsh %s\n", version.Info())
	rg, ok := inv.Backend().(store.RawGetter)
	if !ok {
		return nil
	}
	v, err := rg.GetJSON(inv.Ctx, "system/version")
	if err != nil {
		inv.Warnf("controller version unavailable: %v", err)
		return nil
	}
	switch v := v.(type) {
	case []interface{}:
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				fmt.Fprintf(inv.Out(), "controller %s\n", model.FormatValue(m["controller"]))
			}
		}
	case map[string]interface{}:
		fmt.Fprintf(inv.Out(), "controller %s\n", model.FormatValue(v["controller"]))
	}
	return nil
}
