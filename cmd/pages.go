package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/pagesmith/internal/config"
	"github.com/xkilldash9x/pagesmith/pkg/observability"
)

// newPagesCmd creates the `pages` command: list or inspect the page objects
// held by the configured persistence backend.
func newPagesCmd() *cobra.Command {
	pagesCmd := &cobra.Command{
		Use:   "pages",
		Short: "Lists persisted page objects",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if cfg.Store.PostgresURL == "" {
				return fmt.Errorf("no persistence configured: set store.postgres_url or PAGESMITH_POSTGRES_URL")
			}

			store, cleanup, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			if url, _ := cmd.Flags().GetString("url"); url != "" {
				pom, ok := store.FindByURL(url)
				if !ok {
					return fmt.Errorf("no page object matches %s", url)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  (v%d)\n%s\npattern: %s\n\n", pom.Name, pom.Version, pom.URL, pom.URLPattern)
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tTYPE\tSELECTOR\tSTABLE\tLAST VERIFIED")
				for _, el := range pom.Elements {
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
						el.Name, el.ElementType, el.PrimarySelector, el.IsStable,
						el.LastVerifiedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tURL\tVERSION\tELEMENTS\tUPDATED")
			for _, pom := range store.All() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					pom.Name, pom.URL, pom.Version, len(pom.Elements),
					pom.LastUpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	pagesCmd.Flags().String("url", "", "show the page object matching this URL")
	return pagesCmd
}
