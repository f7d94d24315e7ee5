package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ragdesk/ragdesk/internal/analytics"
	"github.com/ragdesk/ragdesk/internal/conversation"
	"github.com/ragdesk/ragdesk/internal/db"
	"github.com/ragdesk/ragdesk/internal/index"
	"github.com/ragdesk/ragdesk/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		watch      bool
		debounceMs int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web chat server",
		Long: `Serve the chat page and JSON API:

  GET  /           chat page
  POST /chat       {"message": "..."} -> answer, intent, entities, sources
  POST /feedback   {"rating": 1-5}
  GET  /analytics  usage summary
  POST /clear      forget this browser session's history
  GET  /health     liveness and index state

The index must have been built with 'ragdesk ingest'. With --watch the
knowledge base is re-ingested whenever a .txt file changes, and the new
index replaces the old one without interrupting in-flight requests.

Press Ctrl-C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(true)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = p.cfg.Server.Addr
			}

			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			embedder, err := p.embedder()
			if err != nil {
				return fmt.Errorf("init embedder: %w", err)
			}
			idx, err := p.loadIndex(ctx, embedder)
			if err != nil {
				return err
			}
			logger.Info("index loaded", zap.String("path", p.indexPath()), zap.Int("records", idx.Len()))

			llm, err := p.llm()
			if err != nil {
				return fmt.Errorf("init LLM adapter: %w", err)
			}

			database, err := p.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			sessions := conversation.NewStore(database)
			maxAge := p.cfg.Server.SessionMaxAge
			if maxAge > 0 {
				if n, err := sessions.Prune(ctx, maxAge); err != nil {
					logger.Warn("prune sessions", zap.Error(err))
				} else if n > 0 {
					logger.Info("pruned idle sessions", zap.Int64("sessions", n), zap.Int("older_than_days", maxAge))
				}
			}

			handle := index.NewHandle(idx)
			srv := server.New(server.Deps{
				Responder: p.responder(llm, logger),
				Index:     handle,
				Sessions:  sessions,
				Analytics: analytics.NewRecorder(db.NewKV(database)),
				Logger:    logger,
			}, addr, time.Duration(maxAge)*24*time.Hour)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Start(gctx) })
			if watch {
				rebuild := func(ctx context.Context) (*index.Index, error) {
					idx, _, err := p.rebuildIndex(ctx, embedder, nil)
					return idx, err
				}
				w := server.NewWatcher(p.cfg.KnowledgeBasePath(p.root), handle, rebuild,
					time.Duration(debounceMs)*time.Millisecond, logger)
				g.Go(func() error { return w.Run(gctx) })
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Serving on %s (model %s). Press Ctrl-C to stop.\n", addr, p.cfg.Model)
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :5000)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-ingest when knowledge base files change")
	cmd.Flags().IntVar(&debounceMs, "debounce", 500, "watch debounce interval in milliseconds")

	return cmd
}
