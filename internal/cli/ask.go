package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ragdesk/ragdesk/internal/conversation"
	"github.com/ragdesk/ragdesk/internal/intent"
	"github.com/ragdesk/ragdesk/internal/rag"
)

// answerer is the slice of *rag.Responder the terminal commands use.
type answerer interface {
	Respond(ctx context.Context, query string, memory conversation.Memory, idx rag.Retriever) (rag.Answer, error)
	RespondStream(ctx context.Context, query string, memory conversation.Memory, idx rag.Retriever, onText func(string)) (rag.Answer, error)
}

// session answers questions against one index, carrying an in-memory log.
type session struct {
	responder answerer
	index     rag.Retriever
	log       conversation.Log
	// stream, when set, receives answer text as it is generated.
	stream io.Writer
}

type reply struct {
	Answer   rag.Answer      `json:"answer"`
	Intent   intent.Result   `json:"intent"`
	Entities intent.Entities `json:"entities"`
	streamed bool
}

func (s *session) ask(ctx context.Context, question string) (reply, error) {
	memory := conversation.BuildMemory(s.log.Turns)

	var (
		ans     rag.Answer
		err     error
		partial bool
	)
	if s.stream != nil {
		ans, err = s.responder.RespondStream(ctx, question, memory, s.index, func(text string) {
			partial = true
			fmt.Fprint(s.stream, text)
		})
		if err != nil && partial {
			fmt.Fprintln(s.stream)
		}
	} else {
		ans, err = s.responder.Respond(ctx, question, memory, s.index)
	}
	if err != nil {
		return reply{}, err
	}

	if err := s.log.AddExchange(question, ans.Text); err != nil {
		return reply{}, err
	}
	return reply{
		Answer:   ans,
		Intent:   intent.Classify(question),
		Entities: intent.ExtractEntities(question),
		streamed: s.stream != nil,
	}, nil
}

// openSession loads the project, its index and the completion provider.
// Answers stream to out when output.stream is enabled.
func openSession(ctx context.Context, model string, out io.Writer) (*session, *zap.Logger, error) {
	p, err := loadProject(false)
	if err != nil {
		return nil, nil, err
	}
	if model != "" {
		p.cfg.Model = model
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := newLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	embedder, err := p.embedder()
	if err != nil {
		return nil, nil, fmt.Errorf("init embedder: %w", err)
	}
	idx, err := p.loadIndex(ctx, embedder)
	if err != nil {
		return nil, nil, err
	}
	llm, err := p.llm()
	if err != nil {
		return nil, nil, fmt.Errorf("init LLM adapter: %w", err)
	}
	s := &session{responder: p.responder(llm, logger), index: idx}
	if p.cfg.Output.Stream {
		s.stream = out
	}
	return s, logger, nil
}

// printReply prints the answer, or only ends its line when it was streamed.
func printReply(w io.Writer, r reply, showSources bool) {
	if r.streamed {
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, r.Answer.Text)
	}
	if !showSources {
		return
	}
	fmt.Fprintf(w, "\n[intent: %s %.2f]\n", r.Intent.PrimaryIntent, r.Intent.Confidence)
	for _, src := range r.Answer.Sources {
		fmt.Fprintf(w, "  • %s: %s\n", src.SourceID, strings.ReplaceAll(src.Content, "\n", " "))
	}
}

func newAskCmd() *cobra.Command {
	var (
		model       string
		showSources bool
		asJSON      bool
		noStream    bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the knowledge base",
		Long: `Retrieve the knowledge base passages closest to the question and ask the
configured language model to answer from them.

Examples:
  ragdesk ask "How do I get a refund?"
  ragdesk ask "My app keeps crashing" --model claude --sources
  ragdesk ask "Reset my password" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			out := cmd.OutOrStdout()
			s, logger, err := openSession(cmd.Context(), model, out)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if asJSON || noStream {
				s.stream = nil
			}

			r, err := s.ask(cmd.Context(), question)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			printReply(out, r, showSources)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "LLM provider override: claude, openai, gemini, ollama")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "show the detected intent and the passages used")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print answer, intent, entities and sources as JSON")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "print the answer only once it is complete")

	return cmd
}
