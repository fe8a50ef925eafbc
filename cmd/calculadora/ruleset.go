package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liamcoop/excedencia/internal/config"
	"github.com/liamcoop/excedencia/rules"
)

func newRulesetCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ruleset",
		Short: "Inspect, validate and publish decision rulesets",
	}

	cmd.AddCommand(
		newRulesetShowCmd(root),
		newRulesetValidateCmd(),
		newRulesetExportCmd(),
		newRulesetPublishCmd(root),
		newRulesetVersionsCmd(root),
	)
	return cmd
}

func newRulesetShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Load the configured ruleset and print its rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rs, err := a.Preload(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s@%s (%s)\n", rs.Name, rs.Version, a.Registry.Source().Describe())
			for i, rule := range rs.Rules {
				fmt.Fprintf(out, "%d. %s: %s\n   when %s\n", i+1, rule.ID, rule.Name, rule.Expression)
			}
			return nil
		},
	}
}

func newRulesetValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Parse a ruleset document and compile every expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read ruleset: %w", err)
			}
			rs, err := rules.ParseRuleset(data)
			if err != nil {
				return err
			}
			if _, err := rules.NewEngine(rs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s@%s is valid (%d rules)\n", rs.Name, rs.Version, len(rs.Rules))
			return nil
		},
	}
}

func newRulesetExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the bundled ruleset document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(rules.BundledRuleset())
			return err
		},
	}
}

// openSQLSource opens the configured ruleset database
func openSQLSource(cmd *cobra.Command, root *rootOptions) (*rules.SQLSource, error) {
	cfg, err := root.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Ruleset.Source != config.SourceSQL {
		return nil, fmt.Errorf("ruleset source is %q; set ruleset.source to sql", cfg.Ruleset.Source)
	}
	return rules.OpenSQLSource(cmd.Context(), cfg.Ruleset.Driver, cfg.Ruleset.DSN, cfg.Ruleset.Name, cfg.Ruleset.Version)
}

func newRulesetPublishCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish FILE",
		Short: "Store a ruleset document as the active version in the database",
		Long: `Validate a ruleset document and store it as the active version of its name.
Use "-" to read the bundled ruleset.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if args[0] == "-" {
				data = rules.BundledRuleset()
			} else {
				var err error
				if data, err = os.ReadFile(args[0]); err != nil {
					return fmt.Errorf("failed to read ruleset: %w", err)
				}
			}

			src, err := openSQLSource(cmd, root)
			if err != nil {
				return err
			}
			defer src.Close()

			rs, err := src.Publish(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s@%s\n", rs.Name, rs.Version)
			return nil
		},
	}
}

func newRulesetVersionsCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List stored versions of the configured ruleset, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openSQLSource(cmd, root)
			if err != nil {
				return err
			}
			defer src.Close()

			versions, err := src.Versions(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(versions)
			}
			for _, v := range versions {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as a JSON array")
	return cmd
}
