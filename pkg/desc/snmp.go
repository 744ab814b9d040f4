package desc

import (
	"context"
	"sort"
	"strings"

	"github.com/newtron-network/ctlsh/pkg/command"
	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/runconfig"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// SNMPPort is the port the firewall must open for the SNMP server.
const SNMPPort = 161

var snmpProtos = []string{"udp", "tcp"}

// FirewallClosedWarning is issued when the SNMP server is enabled but no
// controller interface accepts SNMP traffic.
const FirewallClosedWarning = "SNMP server port not open on any controller-node interface. " +
	"Use firewall rule configuration to open SNMP UDP port 161"

// openInterfaces returns the controller interfaces with a firewall rule
// opening port for any of protos, sorted by id.
func openInterfaces(ctx context.Context, b store.Backend, protos []string, port int) ([]store.Row, error) {
	open := make(map[string]bool)
	for _, proto := range protos {
		rules, err := b.Query(ctx, "firewall-rule", map[string]interface{}{"proto": proto, "port": port})
		if err != nil {
			return nil, err
		}
		for _, r := range rules {
			open[model.FormatValue(r["interface"])] = true
		}
	}
	if len(open) == 0 {
		return nil, nil
	}

	ifs, err := b.Query(ctx, "controller-interface", nil)
	if err != nil {
		return nil, err
	}
	var out []store.Row
	for _, ifc := range ifs {
		if open[model.FormatValue(ifc["id"])] {
			out = append(out, ifc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return model.FormatValue(out[i]["id"]) < model.FormatValue(out[j]["id"])
	})
	return out, nil
}

// interfaceAddress prefers the discovered address over the configured one.
func interfaceAddress(ifc store.Row) string {
	if ip := model.FormatValue(ifc["discovered-ip"]); ip != "" {
		return ip
	}
	return model.FormatValue(ifc["ip"])
}

// snmpValidateFirewall warns when the firewall keeps SNMP out, or when
// the firewall rules cannot be read. It never fails, so replaying a
// running config with the server enabled works before the firewall rules
// are in place.
func snmpValidateFirewall(inv *command.Invocation) error {
	ifs, err := openInterfaces(inv.Ctx, inv.Backend(), snmpProtos, SNMPPort)
	if err != nil {
		inv.Warnf("could not check the firewall for SNMP port %d: %v", SNMPPort, err)
		return nil
	}
	if len(ifs) == 0 {
		inv.Warnf("%s", FirewallClosedWarning)
	}
	return nil
}

// snmpFirewallInterfaces adds an "interfaces" column to the query result
// listing the addresses SNMP is reachable on.
func snmpFirewallInterfaces(inv *command.Invocation) error {
	if inv.Result == nil {
		return nil
	}
	ifs, err := openInterfaces(inv.Ctx, inv.Backend(), snmpProtos, SNMPPort)
	if err != nil {
		return err
	}
	addrs := make([]string, 0, len(ifs))
	for _, ifc := range ifs {
		addrs = append(addrs, interfaceAddress(ifc))
	}
	text := strings.Join(addrs, ", ")
	for _, row := range inv.Result {
		row["interfaces"] = text
	}
	return nil
}

func snmpEntry() runconfig.Entry {
	return runconfig.Entry{
		Name:     "snmp",
		Priority: snmpPriority,
		Render:   renderSNMP,
		Args:     entryArgs("snmp", "SNMP server configuration", nil),
	}
}

func renderSNMP(ctx *runconfig.Context, cfg *runconfig.Config, _ []string) error {
	const objType = "snmp-server-config"
	row, err := singleton(ctx, objType)
	if err != nil || row == nil {
		return err
	}
	g := &runconfig.Config{}
	if ctx.NotDefaultValue(objType, "community", row["community"]) {
		g.Appendf("snmp-server community ro %s", util.QuoteString(model.FormatValue(row["community"])))
	}
	ctx.IncludeField(g, 0, objType, "location", row["location"], "snmp-server ")
	ctx.IncludeField(g, 0, objType, "contact", row["contact"], "snmp-server ")
	if ctx.NotDefaultValue(objType, "server-enable", row["server-enable"]) {
		g.Append("snmp-server enable")
	}
	cfg.AppendGroup(g)
	return nil
}
