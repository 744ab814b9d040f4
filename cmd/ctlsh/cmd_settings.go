package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/ctlsh/pkg/cli"
	"github.com/newtron-network/ctlsh/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.ctlsh/settings.json.

Settings provide defaults for the global flags:
  - backend:      rest, redis or memory (--backend)
  - controller:   REST API host:port or URL (--controller)
  - redis_addr:   Redis address (--redis-addr)
  - redis_db:     Redis database number (--redis-db)
  - history_file: Shell history file
  - audit_log:    Audit log file, "-" to disable
  - cache_ttl:    How long REST reads are reused, e.g. 2s

Examples:
  ctlsh settings show
  ctlsh settings set controller 10.0.0.5:8000
  ctlsh settings set backend redis
  ctlsh settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		t := cli.NewTable("SETTING", "VALUE", "EFFECTIVE")
		effective := map[string]string{
			"backend":      s.GetBackend(),
			"controller":   s.GetController(),
			"redis_addr":   s.GetRedisAddr(),
			"redis_db":     fmt.Sprint(s.RedisDB),
			"history_file": s.GetHistoryFile(),
			"audit_log":    s.GetAuditLog(),
			"cache_ttl":    s.GetCacheTTL().String(),
		}
		for _, key := range settings.Keys {
			value, _ := s.Get(key)
			if value == "" {
				value = "(not set)"
			}
			eff := effective[key]
			if eff == "" {
				eff = "(disabled)"
			}
			t.Row(key, value, eff)
		}
		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value. An empty value restores the default.

Examples:
  ctlsh settings set controller ctl.example.net:8000
  ctlsh settings set audit_log -
  ctlsh settings set cache_ttl 5s`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}
		if err := s.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Printf("%s set to: %s\n", args[0], args[1])
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		value, err := s.Get(args[0])
		if err != nil {
			return err
		}
		if value == "" {
			fmt.Println("(not set)")
		} else {
			fmt.Println(value)
		}
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("All settings cleared.")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(settings.DefaultSettingsPath())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsClearCmd)
	settingsCmd.AddCommand(settingsPathCmd)
}
