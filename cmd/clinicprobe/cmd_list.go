package main

import (
	"io"
	"strings"

	"clinicprobe/internal/clinic"
	"clinicprobe/internal/scenario"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List scenario IDs, groups and titles",
	RunE: func(cmd *cobra.Command, args []string) error {
		h := scenario.NewHarness(1, 0)
		if err := h.Register(clinic.Catalogue(clinic.BudgetsFromConfig(cfg))...); err != nil {
			return err
		}
		selected, err := h.Select(selection())
		if err != nil {
			return err
		}
		renderList(cmd.OutOrStdout(), sortedLike(h.List(), selected))
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&runGroup, "group", "", "Only list scenarios in this group")
	listCmd.Flags().StringSliceVar(&runTags, "tag", nil, "Only list scenarios carrying every tag")
}

// sortedLike keeps the entries of order that appear in keep.
func sortedLike(order, keep []*scenario.Scenario) []*scenario.Scenario {
	wanted := make(map[string]bool, len(keep))
	for _, sc := range keep {
		wanted[sc.ID] = true
	}
	out := make([]*scenario.Scenario, 0, len(keep))
	for _, sc := range order {
		if wanted[sc.ID] {
			out = append(out, sc)
		}
	}
	return out
}

func renderList(w io.Writer, scenarios []*scenario.Scenario) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Group", "Title", "Tags"})
	table.SetAutoWrapText(false)
	for _, sc := range scenarios {
		tags := strings.Join(sc.Tags, ",")
		if sc.Adversarial {
			tags = strings.TrimPrefix(tags+",adversarial", ",")
		}
		table.Append([]string{sc.ID, sc.Group, sc.Title, tags})
	}
	table.Render()
}
