package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"stocksage/internal/chat"
	"stocksage/internal/remote"
	"stocksage/internal/termui"
)

var (
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [SYMBOL]",
		Short: "Start an interactive conversation about a stock",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, cfg, err := opts.resolveEndpoint()
			if err != nil {
				return err
			}
			client := remote.NewClient(endpoint, time.Duration(cfg.Client.TimeoutMs)*time.Millisecond)
			session := chat.NewSession(client)
			out := cmd.OutOrStdout()

			symbol := ""
			if len(args) == 1 {
				symbol = args[0]
			} else if symbol, err = pickSymbol(cmd, client); err != nil {
				return ignoreInterrupt(err)
			}
			selectSubject(out, session, symbol)

			for {
				var line string
				prompt := &survey.Input{Message: session.Subject() + " >"}
				if err := survey.AskOne(prompt, &line); err != nil {
					return ignoreInterrupt(err)
				}
				line = strings.TrimSpace(line)

				switch line {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				case "/switch":
					next, err := pickSymbol(cmd, client)
					if err != nil {
						return ignoreInterrupt(err)
					}
					selectSubject(out, session, next)
					continue
				}

				fmt.Fprintln(out, hintStyle.Render("thinking..."))
				turn, ok := session.Submit(cmd.Context(), line)
				if !ok {
					continue
				}
				fmt.Fprintln(out, termui.RenderTurn(turn))
				fmt.Fprintln(out)
			}
		},
	}
}

func selectSubject(out io.Writer, s *chat.Session, symbol string) {
	s.SelectSubject(symbol)
	fmt.Fprintln(out, titleStyle.Render("Chatting about "+s.Subject()))
	fmt.Fprintln(out, hintStyle.Render("/switch to pick another stock, /quit to leave"))
}

// pickSymbol offers the server's watchlist, with a free-form entry when the
// list is empty or unavailable.
func pickSymbol(cmd *cobra.Command, client *remote.Client) (string, error) {
	items, err := client.Watchlist(cmd.Context())
	if err != nil || len(items) == 0 {
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), hintStyle.Render(fmt.Sprintf("watchlist unavailable: %v", err)))
		}
		var symbol string
		err := survey.AskOne(&survey.Input{Message: "Stock symbol:"}, &symbol, survey.WithValidator(survey.Required))
		return strings.ToUpper(strings.TrimSpace(symbol)), err
	}

	labels := make([]string, 0, len(items))
	bySymbol := make(map[string]string, len(items))
	for _, item := range items {
		label := item.Symbol
		if item.CompanyName != "" {
			label = fmt.Sprintf("%s (%s)", item.Symbol, item.CompanyName)
		}
		labels = append(labels, label)
		bySymbol[label] = item.Symbol
	}
	var choice string
	if err := survey.AskOne(&survey.Select{Message: "Select a stock:", Options: labels}, &choice); err != nil {
		return "", err
	}
	return bySymbol[choice], nil
}

func ignoreInterrupt(err error) error {
	if errors.Is(err, terminal.InterruptErr) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
