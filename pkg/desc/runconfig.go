package desc

import (
	"github.com/newtron-network/ctlsh/pkg/grammar"
	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/runconfig"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// Running-config priorities. Lower renders first.
const (
	forwardingPriority = 2200
	snmpPriority       = 2300
	switchPriority     = 3000
	hostPriority       = 3100
	tagPriority        = 4000
)

// WordField holds the optional argument after an entry name in
// "show running-config <entry> [word]".
const WordField = "word"

// entryArgs is the grammar selecting one entry, with an optional word.
func entryArgs(name, help string, word *grammar.ArgSpec) []grammar.ArgSpec {
	args := []grammar.ArgSpec{{
		Field:     runconfig.CommandToken,
		Type:      string(grammar.FieldEnum),
		Values:    grammar.StringList{name},
		ShortHelp: help,
	}}
	if word != nil {
		w := *word
		w.Field = WordField
		w.Optional = true
		args = append(args, w)
	}
	return args
}

// singleton returns the one row of a singleton object type, or nil. Extra
// rows are reported and ignored.
func singleton(ctx *runconfig.Context, objType string) (store.Row, error) {
	rows, err := ctx.GetTableFromStore(objType)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
	default:
		ctx.Warnf("%s: %d rows, expected one; showing the first", objType, len(rows))
	}
	return rows[0], nil
}

func forwardingEntry() runconfig.Entry {
	return runconfig.Entry{
		Name:     "forwarding",
		Priority: forwardingPriority,
		Render:   renderForwarding,
		Args:     entryArgs("forwarding", "Forwarding configuration", nil),
	}
}

func renderForwarding(ctx *runconfig.Context, cfg *runconfig.Config, _ []string) error {
	row, err := singleton(ctx, "forwarding-config")
	if err != nil || row == nil {
		return err
	}
	g := &runconfig.Config{}
	for _, f := range []string{"access-priority", "core-priority"} {
		ctx.IncludeField(g, 0, "forwarding-config", f, row[f], "forwarding ")
	}
	cfg.AppendGroup(g)
	return nil
}

func switchEntry() runconfig.Entry {
	return runconfig.Entry{
		Name:     "switch",
		Priority: switchPriority,
		Render:   renderSwitches,
		Args: entryArgs("switch", "Switch configuration", &grammar.ArgSpec{
			Type:       string(grammar.FieldDPID),
			Other:      "switch-config",
			Completion: grammar.StringList{"complete-object-field", "complete-alias-choice"},
			ShortHelp:  "Switch DPID or alias",
		}),
	}
}

// renderSwitches writes one group per configured switch, or only the
// switch named by words[0].
func renderSwitches(ctx *runconfig.Context, cfg *runconfig.Config, words []string) error {
	var filter []interface{}
	if len(words) > 0 {
		dpid, err := resolveAliased(ctx, "switch-config", words[0])
		if err != nil {
			return err
		}
		filter = []interface{}{"dpid", dpid}
	}
	rows, err := ctx.GetTableFromStore("switch-config", filter...)
	if err != nil {
		return err
	}
	for _, row := range rows {
		dpid := model.FormatValue(row["dpid"])
		g := &runconfig.Config{}
		g.Appendf("switch %s", dpid)
		ctx.IncludeAlias(g, 1, "switch-config", dpid)
		ctx.IncludeField(g, 1, "switch-config", "description", row["description"], "")
		if ctx.NotDefaultValue("switch-config", "core-switch", row["core-switch"]) {
			g.AppendIndented(1, "core-switch")
		}
		cfg.AppendGroup(g)
	}
	return nil
}

func hostEntry() runconfig.Entry {
	return runconfig.Entry{
		Name:     "host",
		Priority: hostPriority,
		Render:   renderHosts,
		Args: entryArgs("host", "Host configuration", &grammar.ArgSpec{
			Type:       string(grammar.FieldHost),
			Other:      "host-config",
			Completion: grammar.StringList{"complete-object-field", "complete-alias-choice"},
			ShortHelp:  "Host MAC address or alias",
		}),
	}
}

func renderHosts(ctx *runconfig.Context, cfg *runconfig.Config, words []string) error {
	var filter []interface{}
	if len(words) > 0 {
		mac, err := resolveAliased(ctx, "host-config", words[0])
		if err != nil {
			return err
		}
		filter = []interface{}{"mac", mac}
	}
	rows, err := ctx.GetTableFromStore("host-config", filter...)
	if err != nil {
		return err
	}
	for _, row := range rows {
		mac := model.FormatValue(row["mac"])
		g := &runconfig.Config{}
		g.Appendf("host %s", mac)
		ctx.IncludeAlias(g, 1, "host-config", mac)
		ctx.IncludeField(g, 1, "host-config", "description", row["description"], "")
		cfg.AppendGroup(g)
	}
	return nil
}

// resolveAliased returns the identifier named by word: the target of
// the alias word when there is one, else word itself.
func resolveAliased(ctx *runconfig.Context, objType, word string) (string, error) {
	t, ok := ctx.Models.Lookup(objType)
	if !ok || t.Alias == "" {
		return word, nil
	}
	field, err := ctx.Models.AliasField(objType)
	if err != nil {
		return "", err
	}
	alias, _ := ctx.Models.Lookup(t.Alias)
	rows, err := ctx.GetTableFromStore(t.Alias, alias.PrimaryKey, word)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return word, nil
	}
	return model.FormatValue(rows[0][field]), nil
}

func tagEntry() runconfig.Entry {
	return runconfig.Entry{
		Name:     "tag",
		Priority: tagPriority,
		Render:   renderTags,
		Args: entryArgs("tag", "Tag configuration", &grammar.ArgSpec{
			Completion: grammar.StringList{"complete-tag-mapping"},
			ShortHelp:  "Tag or tag namespace",
		}),
	}
}

// renderTags writes each persisted tag with its match lines. words[0],
// when given, selects tags by full "namespace.name=value" or by
// namespace.
func renderTags(ctx *runconfig.Context, cfg *runconfig.Config, words []string) error {
	tags, err := ctx.GetTableFromStore("tag", "persist", true)
	if err != nil {
		return err
	}
	t, _ := ctx.Models.Lookup("tag")
	for _, tag := range tags {
		ns := model.FormatValue(tag["namespace"])
		text := formatTag(tag)
		if len(words) > 0 && words[0] != text && words[0] != ns {
			continue
		}
		key, ok := t.BuildKey(tag)
		if !ok {
			ctx.Warnf("tag %s: incomplete key", text)
			continue
		}
		mappings, err := ctx.GetTableFromStore("tag-mapping", "tag", key)
		if err != nil {
			return err
		}

		g := &runconfig.Config{}
		g.Appendf("tag %s", util.QuoteString(text))
		for _, m := range mappings {
			if line := matchLine(m); line != "" {
				g.AppendIndented(1, "%s", line)
			}
		}
		cfg.AppendGroup(g)
	}
	return nil
}
