package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newChatCmd() *cobra.Command {
	var (
		model       string
		showSources bool
		noStream    bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive support chat in the terminal",
		Long: `Start a conversation with the support assistant. Each answer sees the
earlier turns of the conversation.

Type /clear to forget the conversation so far, /exit or Ctrl-D to quit.
When stdin is not a terminal, each input line is one question.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, logger, err := openSession(cmd.Context(), model, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if noStream {
				s.stream = nil
			}

			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			return runChat(cmd.Context(), s, cmd.InOrStdin(), cmd.OutOrStdout(), interactive, showSources)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "LLM provider override: claude, openai, gemini, ollama")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "show the detected intent and the passages used")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "print each answer only once it is complete")

	return cmd
}

// maxQuestionBytes bounds a single input line.
const maxQuestionBytes = 1 << 20

// runChat reads questions line by line until EOF or /exit. A failed answer
// is reported and leaves the history unchanged.
func runChat(ctx context.Context, s *session, in io.Reader, out io.Writer, interactive, showSources bool) error {
	if interactive {
		fmt.Fprintln(out, "Ask a support question. /clear resets the conversation, /exit quits.")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxQuestionBytes)
	for {
		if interactive {
			fmt.Fprint(out, "\n> ")
		}
		if !scanner.Scan() {
			if interactive {
				fmt.Fprintln(out)
			}
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			s.log.Clear()
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		}

		if interactive {
			fmt.Fprintln(out)
		}
		r, err := s.ask(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		printReply(out, r, showSources)
	}
}
