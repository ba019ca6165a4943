package cmd

import (
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/emberhq/ember/shared/config"
)

func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tools",
		Short:        "List the tools available to the agent",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			registry := buildRegistry(afero.NewOsFs(), cfg)

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Tool", "Description", "Arguments", "Readonly"})
			table.SetAutoWrapText(false)
			table.SetBorder(false)

			for _, t := range registry.All() {
				params := make([]string, 0, len(t.Params))
				for _, p := range t.Params {
					name := p.Name
					if !p.Required {
						name += "?"
					}
					params = append(params, name)
				}
				table.Append([]string{
					t.Name,
					t.Description,
					strings.Join(params, ", "),
					strconv.FormatBool(t.Readonly),
				})
			}

			table.Render()
			return nil
		},
	}

	return cmd
}
