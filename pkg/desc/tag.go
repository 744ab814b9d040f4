package desc

import (
	"strings"

	"github.com/newtron-network/ctlsh/pkg/command"
	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
)

func formatTag(tag store.Row) string {
	return command.FormatTag(
		model.FormatValue(tag["namespace"]),
		model.FormatValue(tag["name"]),
		model.FormatValue(tag["value"]),
	)
}

// matchLine renders a tag-mapping row as the "match" command that
// creates it.
func matchLine(m store.Row) string {
	var parts []string
	add := func(keyword, field string) {
		if s := model.FormatValue(m[field]); s != "" {
			parts = append(parts, keyword, util.QuoteString(s))
		}
	}
	add("mac", "mac")
	add("vlan", "vlan")
	add("switch", "dpid")
	if len(parts) == 0 {
		return ""
	}
	if s := model.FormatValue(m["ifname"]); s != "" && m["dpid"] != nil {
		parts = append(parts, util.QuoteString(s))
	}
	return "match " + strings.Join(parts, " ")
}
