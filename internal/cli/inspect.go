package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyjia/legal-docgen/internal/container"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/legal"
)

const cliCheckedBy = "docgenctl"

// LookupCommand creates the lookup command
func LookupCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <legal-number>",
		Short: "Find the generation that carries a legal number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := legal.ParseNumber(args[0])
			if err != nil {
				return err
			}
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				gen, err := c.Services().Generation.FindByLegalNumber(ctx, number.String())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), gen)
			})
		},
	}
}

// EntityCommand creates the entity command
func EntityCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "entity <entity-type> <id>",
		Short: "Print the attributes the resolver sees for an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				attrs, err := c.EntityProvider().Lookup(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if attrs == nil {
					return fmt.Errorf("%s %s: %w", args[0], args[1], entity.ErrReferenceNotFound)
				}
				return printJSON(cmd.OutOrStdout(), attrs)
			})
		},
	}
}

// ComplianceCommand creates the compliance command group
func ComplianceCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Audit templates against the legal mention checklists",
	}

	check := &cobra.Command{
		Use:   "check [template-id]",
		Short: "Check one template, or every template when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				compliance := c.Services().Compliance

				if len(args) == 1 {
					id, err := parseID(args[0])
					if err != nil {
						return err
					}
					report, err := compliance.Check(ctx, id, cliCheckedBy)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), report)
				}

				reports, err := compliance.CheckAll(ctx, cliCheckedBy)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TEMPLATE\tTYPE\tSCORE\tCOMPLIANT\tMISSING")
				for _, r := range reports {
					fmt.Fprintf(w, "%d\t%s\t%d\t%t\t%d\n", r.TemplateID, r.DocumentType, r.Score, r.Compliant, len(r.MissingMentions)+len(r.MissingTags))
				}
				return w.Flush()
			})
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate template and generation statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				s, err := c.Services().Compliance.Stats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			})
		},
	}

	cmd.AddCommand(check, stats)
	return cmd
}

// TemplatesCommand creates the templates command group
func TemplatesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List and toggle templates",
	}

	var (
		docType        string
		includeDeleted bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := entity.TemplateFilter{IncludeDeleted: includeDeleted}
			if docType != "" {
				dt, err := entity.ParseDocumentType(docType)
				if err != nil {
					return err
				}
				filter.DocumentType = dt
			}

			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				templates, err := c.Services().Template.List(ctx, filter)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTYPE\tNAME\tVERSION\tACTIVE\tTAGS")
				for _, t := range templates {
					fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%t\t%d\n", t.ID, t.DocumentType, t.Name, t.Version, t.Active, len(t.Tags))
				}
				return w.Flush()
			})
		},
	}
	list.Flags().StringVar(&docType, "type", "", "Only list templates of this document type")
	list.Flags().BoolVar(&includeDeleted, "include-deleted", false, "Include soft-deleted templates")

	activate := &cobra.Command{
		Use:   "activate <template-id>",
		Short: "Make a template the active one for its document type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				tpl, err := c.Services().Template.Activate(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Template %d (%s v%d) is now active for %s\n", tpl.ID, tpl.Name, tpl.Version, tpl.DocumentType)
				return nil
			})
		},
	}

	deactivate := &cobra.Command{
		Use:   "deactivate <template-id>",
		Short: "Deactivate a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				if err := c.Services().Template.Deactivate(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Template %d deactivated\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(list, activate, deactivate)
	return cmd
}

// CountersCommand creates the counters command
func CountersCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "counters [document-type [year]]",
		Short: "Show the last legal number issued per regulated document type",
		Long: `Show the numbering counters. Without a document type every regulated type
is listed; the year defaults to the current year of the pipeline clock.

Examples:
  docgenctl counters
  docgenctl counters FACTURE 2025`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var types []entity.DocumentType
			if len(args) > 0 {
				dt, err := entity.ParseDocumentType(args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				types = append(types, dt)
			} else {
				for _, dt := range entity.AllDocumentTypes() {
					if dt.IsRegulated() {
						types = append(types, dt)
					}
				}
			}

			year := 0
			if len(args) == 2 {
				y, err := strconv.Atoi(args[1])
				if err != nil || y < 1 {
					return fmt.Errorf("invalid year %q", args[1])
				}
				year = y
			}

			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				if year == 0 {
					year = c.Clock().Now().Year()
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TYPE\tYEAR\tLAST\tLAST NUMBER")
				for _, dt := range types {
					n, err := c.Services().Numbering.Current(ctx, dt, year)
					if err != nil {
						return err
					}
					last := "-"
					if n > 0 {
						last = legal.FormatNumber(dt.Prefix(), year, n)
					}
					fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", dt, year, n, last)
				}
				return w.Flush()
			})
		},
	}
}
