package handlers

import (
	"fmt"

	"pheme/internal/core"

	"github.com/spf13/cobra"
)

// NewSourcesCmd creates the sources management command group.
func NewSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage configured sources",
	}
	cmd.AddCommand(newSourcesListCmd())
	cmd.AddCommand(newSourcesAddCmd())
	return cmd
}

func newSourcesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sources, err := a.store.ListSources(false)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Println("No sources configured.")
				return nil
			}
			for _, s := range sources {
				status := "enabled"
				if !s.Enabled {
					status = "disabled"
				}
				fmt.Printf("%3d  %-8s %-30s %s (%s)\n", s.ID, s.Kind, s.Name, s.URL, status)
			}
			return nil
		},
	}
}

func newSourcesAddCmd() *cobra.Command {
	var (
		name     string
		kind     string
		url      string
		category string
		maxItems int
		sort     string
		selector string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a source",
		RunE: func(cmd *cobra.Command, args []string) error {
			valid := false
			for _, k := range core.Kinds() {
				if kind == string(k) {
					valid = true
					break
				}
			}
			if !valid {
				return fmt.Errorf("invalid kind %q (expected feed, board, or web)", kind)
			}

			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := map[string]string{}
			if maxItems > 0 {
				cfg["max_items"] = fmt.Sprintf("%d", maxItems)
			}
			if sort != "" {
				cfg["sort"] = sort
			}
			if selector != "" {
				cfg["selector"] = selector
			}

			id, err := a.store.AddSource(core.Source{
				Name:     name,
				Kind:     core.SourceKind(kind),
				URL:      url,
				Category: category,
				Config:   cfg,
				Enabled:  true,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Added source %d: %s\n", id, name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "source name")
	cmd.Flags().StringVar(&kind, "kind", "feed", "source kind: feed, board, or web")
	cmd.Flags().StringVar(&url, "url", "", "feed URL, board identifier, or page URL")
	cmd.Flags().StringVar(&category, "category", "general", "category label")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "per-source item cap")
	cmd.Flags().StringVar(&sort, "sort", "", "board sort order (board kind only)")
	cmd.Flags().StringVar(&selector, "selector", "", "CSS selector (web kind only)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
