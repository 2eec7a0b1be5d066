package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/garyjia/legal-docgen/internal/application/service"
	"github.com/garyjia/legal-docgen/internal/container"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
)

// GenerateCommand creates the generate command
func GenerateCommand(opts *rootOptions) *cobra.Command {
	var (
		req     service.GenerateRequest
		docType string
		refType string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a document and wait for it to settle",
		Long: `Request a generation and process it in this process.

Examples:
  docgenctl generate --type FACTURE --ref 42
  docgenctl generate --type DEVIS --ref 17 --ref-type service_request --email client@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := entity.ParseDocumentType(docType)
			if err != nil {
				return err
			}
			req.DocumentType = dt
			req.ReferenceType = entity.ReferenceType(refType)
			req.SendEmail = req.EmailTo != ""

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return opts.withContainer(ctx, func(ctx context.Context, c *container.Container) error {
				generations := c.Services().Generation

				gen, err := generations.Generate(ctx, req)
				if err != nil {
					return err
				}
				// No-op when the requested-event handler claimed it first
				processErr := generations.Process(ctx, gen.ID)

				gen, err = waitSettled(ctx, generations, gen.ID)
				if err != nil {
					if processErr != nil {
						return processErr
					}
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), gen); err != nil {
					return err
				}
				if gen.Status == entity.GenerationStatusFailed {
					return fmt.Errorf("generation %d failed: %s", gen.ID, gen.ErrorMessage)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&docType, "type", "", "Document type (FACTURE, DEVIS, AVOIR, ...)")
	cmd.Flags().StringVar(&req.ReferenceID, "ref", "", "Reference entity id")
	cmd.Flags().StringVar(&refType, "ref-type", string(entity.ReferenceTypeIntervention), "Reference entity type")
	cmd.Flags().StringVar(&req.EmailTo, "email", "", "Send the document to this address once generated")
	cmd.Flags().StringVar(&req.RequestedBy, "requested-by", "docgenctl", "Requester recorded on the generation")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Maximum time to wait for the document")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("ref")

	return cmd
}

func waitSettled(ctx context.Context, generations service.GenerationService, id int64) (*entity.Generation, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		gen, err := generations.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if gen.IsTerminal() {
			return gen, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("generation %d still %s: %w", id, gen.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

// VerifyCommand creates the verify command
func VerifyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <generation-id>",
		Short: "Check a locked document against its stored fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				result, err := c.Services().Integrity.Verify(ctx, id)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if !result.Verified {
					return fmt.Errorf("generation %d failed verification: %s", id, result.Reason)
				}
				return nil
			})
		},
	}
}

// VerifyAllCommand creates the verify-all command
func VerifyAllCommand(opts *rootOptions) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "verify-all",
		Short: "Check every locked document and report mismatches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				failures, checked, err := c.Services().Integrity.VerifyAll(ctx, batchSize)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Checked %d locked document(s), %d failure(s)\n", checked, len(failures))
				for _, f := range failures {
					fmt.Fprintf(out, "  #%d %s: %s\n", f.GenerationID, f.LegalNumber, f.Reason)
				}
				if len(failures) > 0 {
					return fmt.Errorf("%d document(s) failed verification", len(failures))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "Locked documents loaded per page")

	return cmd
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
