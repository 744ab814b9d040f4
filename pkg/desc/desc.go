// Package desc is the built-in command set: the object types, command
// descriptors and display formats under descriptors/, the custom actions
// they name, and the running-config renderers for each feature.
package desc

import (
	"embed"
	"fmt"
	"path"
	"sort"

	"github.com/newtron-network/ctlsh/pkg/command"
	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/runconfig"
)

//go:embed descriptors
var descriptorsFS embed.FS

const (
	modelsFile  = "descriptors/models.yaml"
	formatsFile = "descriptors/formats.yaml"
	commandsDir = "descriptors/commands"
)

// NewModels loads the built-in object types into a new registry.
func NewModels() (*model.Registry, error) {
	data, err := descriptorsFS.ReadFile(modelsFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", modelsFile, err)
	}
	r := model.NewRegistry()
	if err := r.LoadYAML(data); err != nil {
		return nil, err
	}
	return r, nil
}

// CommandFiles returns the embedded descriptor file names, sorted.
func CommandFiles() ([]string, error) {
	entries, err := descriptorsFS.ReadDir(commandsDir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", commandsDir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".yaml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Register adds the built-in formats, custom actions, running-config
// entries and command descriptors to b.
func Register(b *command.Builder) error {
	formats, err := descriptorsFS.ReadFile(formatsFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", formatsFile, err)
	}
	if err := b.AddFormats(formats); err != nil {
		return err
	}

	b.AddAction("snmp-validate-firewall", command.ActionFunc(snmpValidateFirewall))
	b.AddAction("snmp-firewall-interfaces", command.ActionFunc(snmpFirewallInterfaces))

	for _, e := range entries() {
		if err := b.RunConfig().Register(e); err != nil {
			return err
		}
	}

	names, err := CommandFiles()
	if err != nil {
		return err
	}
	for _, name := range names {
		data, err := descriptorsFS.ReadFile(path.Join(commandsDir, name))
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if err := b.AddDescriptors(data); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// NewEngine builds an engine over the built-in command set.
func NewEngine(opts command.Options) (*command.Engine, error) {
	models, err := NewModels()
	if err != nil {
		return nil, err
	}
	b := command.NewBuilder(models)
	if err := Register(b); err != nil {
		return nil, err
	}
	return b.Build(opts)
}

// entries lists the running-config renderers in priority order.
func entries() []runconfig.Entry {
	return []runconfig.Entry{
		forwardingEntry(),
		snmpEntry(),
		switchEntry(),
		hostEntry(),
		tagEntry(),
	}
}
