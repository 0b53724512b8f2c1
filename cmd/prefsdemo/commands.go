package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/typedprefs/internal/api"
	"github.com/kalambet/typedprefs/internal/config"
	"github.com/kalambet/typedprefs/internal/demo"
)

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every preference with its current value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, _, closeAll, err := openHandler(cmd)
		if err != nil {
			return err
		}
		defer closeAll()

		views, err := demo.DescribeAll(h)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(views)
		}

		for _, v := range views {
			fmt.Fprintln(out, entryLine(v))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("json", false, "print as JSON")
}

// --- get / set / clear ---

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one preference, initializing it with its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, _, closeAll, err := openHandler(cmd)
		if err != nil {
			return err
		}
		defer closeAll()

		e, err := demo.Lookup(h, args[0])
		if err != nil {
			return err
		}
		v, err := h.GetAny(e)
		if err != nil {
			return err
		}
		text, err := h.FormatText(e, v)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a preference",
	Long: `Set a preference.

Primitive values use their plain text form. Complex values are given in the
configured codec's format.

Examples:
  prefsdemo set theme 1
  prefsdemo set boolean_setting false
  prefsdemo set complex_setting '{"name":"x","number":1,"list":[4,5]}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		h, _, closeAll, err := openHandler(cmd)
		if err != nil {
			return err
		}
		defer closeAll()

		e, err := demo.Lookup(h, key)
		if err != nil {
			return err
		}
		v, err := h.ParseText(e, value)
		if err != nil {
			return err
		}
		if err := h.SetAny(e, v); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear <key>",
	Short: "Remove a preference so its default applies again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, _, closeAll, err := openHandler(cmd)
		if err != nil {
			return err
		}
		defer closeAll()

		e, err := demo.Lookup(h, args[0])
		if err != nil {
			return err
		}
		if err := h.Clear(e); err != nil {
			return err
		}

		printSuccess("Cleared %s", args[0])
		return nil
	},
}

// --- reset ---

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every stored preference",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL stored preferences. Use --confirm to proceed.")
			return nil
		}

		h, _, closeAll, err := openHandler(cmd)
		if err != nil {
			return err
		}
		defer closeAll()

		if err := h.ClearAll(); err != nil {
			return err
		}
		printSuccess("All preferences cleared")
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("confirm", false, "confirm reset")
}

// --- watch ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print preference changes made by other processes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")

		h, _, closeAll, err := openHandler(cmd)
		if err != nil {
			return err
		}
		defer closeAll()

		out := cmd.OutOrStdout()
		events := make(chan string, 16)
		g, gctx := errgroup.WithContext(cmd.Context())

		stop, err := reportChanges(h, func(line string) {
			select {
			case events <- line:
			case <-gctx.Done():
			}
		})
		if err != nil {
			return err
		}
		defer stop()

		g.Go(func() error {
			return follow(gctx, h, interval)
		})
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case line := <-events:
					fmt.Fprintln(out, line)
				}
			}
		})

		printStep("Watching %s (Ctrl-C to stop)", h.SettingsFileName())
		return g.Wait()
	},
}

func init() {
	watchCmd.Flags().Duration("interval", time.Second, "poll interval for stores without change notifications")
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the preferences as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")

		h, logger, closeAll, err := openHandler(cmd)
		if err != nil {
			return err
		}
		defer closeAll()

		mcpSrv := api.NewMCPServer(api.MCPDeps{Handler: h, Version: version, Logger: logger})
		stdioSrv := server.NewStdioServer(mcpSrv)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			// The client closing stdin ends the session.
			defer cancel()
			err := stdioSrv.Listen(gctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp stdio server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			return follow(gctx, h, interval)
		})

		logger.Info("MCP server started (stdio transport)")
		return g.Wait()
	},
}

func init() {
	mcpCmd.Flags().Duration("interval", time.Second, "poll interval for stores without change notifications")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintln(out, configLine(k))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKeyIn(configFile(), key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKeyIn(configFile(), args[0]); err != nil {
			return err
		}

		printSuccess("Unset %s", args[0])
		return nil
	},
}

func configFile() string {
	if configPath != "" {
		return configPath
	}
	return config.Path()
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)

	rootCmd.AddCommand(listCmd, getCmd, setCmd, clearCmd, resetCmd, watchCmd, mcpCmd, configCmd)
}
