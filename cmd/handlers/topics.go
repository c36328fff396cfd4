package handlers

import (
	"fmt"
	"strings"

	"pheme/internal/core"

	"github.com/spf13/cobra"
)

// NewTopicsCmd creates the topics management command group.
func NewTopicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Manage digest topics",
	}
	cmd.AddCommand(newTopicsListCmd())
	cmd.AddCommand(newTopicsAddCmd())
	return cmd
}

func newTopicsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List topics in their tie-break order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			topics, err := a.store.ListTopics()
			if err != nil {
				return err
			}
			if len(topics) == 0 {
				fmt.Println("No topics configured.")
				return nil
			}
			for _, t := range topics {
				fmt.Printf("%3d  %-20s priority=%-3d max=%-3d keywords=%s\n",
					t.ID, t.Name, t.Priority, t.MaxArticles, strings.Join(t.Keywords, ","))
			}
			return nil
		},
	}
}

func newTopicsAddCmd() *cobra.Command {
	var (
		name        string
		keywords    string
		patterns    string
		priority    int
		maxArticles int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.store.AddTopic(core.Topic{
				Name:        name,
				Keywords:    splitList(keywords),
				Patterns:    splitList(patterns),
				Priority:    priority,
				MaxArticles: maxArticles,
				Enabled:     true,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Added topic %d: %s\n", id, name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "topic name")
	cmd.Flags().StringVar(&keywords, "keywords", "", "comma-separated keywords")
	cmd.Flags().StringVar(&patterns, "patterns", "", "comma-separated regex patterns")
	cmd.Flags().IntVar(&priority, "priority", 0, "tie-break priority (higher wins)")
	cmd.Flags().IntVar(&maxArticles, "max", 10, "maximum articles in the digest section")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
