package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"stocksage/internal/markup"
	"stocksage/internal/termui"
)

func newRenderCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "render [FILE]",
		Short: "Render assistant markup from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 && args[0] != "-" {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return render(cmd.OutOrStdout(), string(data), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parsed blocks as JSON")
	return cmd
}

func render(w io.Writer, text string, asJSON bool) error {
	blocks := markup.Parse(text)
	if !asJSON {
		_, err := fmt.Fprintln(w, termui.RenderContent(blocks))
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(blocks)
}
