package handlers

import (
	"fmt"

	"pheme/internal/core"

	"github.com/spf13/cobra"
)

// NewBlocklistCmd creates the keyword blocklist command group.
func NewBlocklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocklist",
		Short: "Manage the global keyword blocklist",
	}
	cmd.AddCommand(newBlocklistListCmd())
	cmd.AddCommand(newBlocklistAddCmd())
	cmd.AddCommand(newBlocklistScopeCmd())
	return cmd
}

func newBlocklistListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List blocked keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			keywords, scope, err := a.store.BlockedKeywords()
			if err != nil {
				return err
			}
			fmt.Printf("Scope: %s\n", scope)
			if len(keywords) == 0 {
				fmt.Println("No blocked keywords.")
				return nil
			}
			for _, kw := range keywords {
				fmt.Printf("  %s\n", kw)
			}
			return nil
		},
	}
}

func newBlocklistAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <keyword>",
		Short: "Block a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.AddBlockedKeyword(args[0]); err != nil {
				return err
			}
			fmt.Printf("Blocked %q\n", args[0])
			return nil
		},
	}
}

func newBlocklistScopeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scope <title_preview|full_text>",
		Short: "Set how much candidate text the blocklist inspects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := core.BlockScope(args[0])
			if scope != core.ScopeNarrow && scope != core.ScopeFull {
				return fmt.Errorf("invalid scope %q", args[0])
			}

			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.SetSetting("filter_scope", string(scope)); err != nil {
				return err
			}
			fmt.Printf("Filter scope set to %s\n", scope)
			return nil
		},
	}
}
