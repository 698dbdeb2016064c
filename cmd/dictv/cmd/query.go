package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmtftr/dictv/internal/query"
	"github.com/mmtftr/dictv/internal/ui"
)

func newQueryCmd() *cobra.Command {
	cfg := effectiveConfig()

	var mode string
	var lang string
	var maxDistance int
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "query <word>",
		Short: "Look up a word in the committed index",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			mgr, err := openManager(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			reader, err := mgr.Reader()
			if err != nil {
				return err
			}

			req := query.Request{
				RawQuery:    args[0],
				Mode:        query.Mode(mode),
				Language:    lang,
				MaxDistance: maxDistance,
				Limit:       limit,
			}

			resp, err := query.Search(ctx, reader, req)
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			renderQueryResults(c, resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", cfg.Search.DefaultMode, "Query mode: exact, fuzzy, or prefix")
	cmd.Flags().StringVar(&lang, "lang", cfg.Search.DefaultLanguage, "Language direction: de-en or en-de")
	cmd.Flags().IntVar(&maxDistance, "max-distance", cfg.Search.DefaultMaxDistance, "Max edit distance for fuzzy mode (1 or 2)")
	cmd.Flags().IntVar(&limit, "limit", cfg.Search.DefaultLimit, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}

func renderQueryResults(c *cobra.Command, resp query.Response) {
	out := c.OutOrStdout()
	styles := ui.GetStyles(ui.DetectNoColor() || !ui.IsTTY(out))

	if len(resp.Results) == 0 {
		fmt.Fprintln(out, styles.Dim.Render("no results"))
		return
	}

	for _, r := range resp.Results {
		fmt.Fprintf(out, "%s  %s\n", styles.Header.Render(r.Word), styles.Dim.Render(fmt.Sprintf("[%s]", r.Language)))
		fmt.Fprintf(out, "  %s\n", r.Definition)
	}
	fmt.Fprintf(out, "\n%s\n", styles.Label.Render(fmt.Sprintf("%d result(s) in %.2fms", len(resp.Results), resp.ElapsedMs)))
}
