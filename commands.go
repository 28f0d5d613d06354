package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fabfab/billchat/api"
	"github.com/fabfab/billchat/bills"
	"github.com/fabfab/billchat/cache"
	"github.com/fabfab/billchat/chat"
	"github.com/fabfab/billchat/config"
	"github.com/fabfab/billchat/llm"
	"github.com/fabfab/billchat/logging"
	"github.com/fabfab/billchat/tracing"
)

const shutdownTimeout = 10 * time.Second

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "billchat",
		Short:         "Ask questions about government bills",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			a.cfg = config.Load()
			a.logger = logging.New(logging.Options{
				Level:      a.cfg.LogLevel,
				FilePath:   a.cfg.LogFile,
				Production: a.cfg.IsProduction(),
			})
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newAskCmd(a),
		newBillsCmd(a),
		newSweepCmd(a),
	)
	return root
}

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the cache sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				a.cfg.Port = port
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

func newAskCmd(a *app) *cobra.Command {
	var bill, question, mode string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask one question about a bill",
		Long: `Ask one question about a bill and print the answer.

Examples:
  billchat ask --bill "Finance Bill" --question "Who pays the housing levy?"
  billchat ask --bill "Finance Bill" --mode chunked`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(question) == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Enter your question: ")
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					question = scanner.Text()
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read question: %w", err)
				}
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return a.ask(ctx, cmd.OutOrStdout(), chat.Request{Bill: bill, Query: question, Mode: chat.Mode(mode)})
		},
	}
	cmd.Flags().StringVar(&bill, "bill", "", "bill name as listed by `billchat bills`")
	cmd.Flags().StringVar(&question, "question", "", "question to ask")
	cmd.Flags().StringVar(&mode, "mode", string(chat.ModeAuto), "auto or chunked")
	_ = cmd.MarkFlagRequired("bill")
	return cmd
}

func newBillsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bills [name]",
		Short: "List bills, or print the extracted text of one bill",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			library, err := a.library()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				content, err := library.Content(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), content)
				return nil
			}
			return printBills(cmd.OutOrStdout(), library.List())
		},
	}
}

func newSweepCmd(a *app) *cobra.Command {
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove cached answers older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if retentionDays > 0 {
				a.cfg.Cache.RetentionDays = retentionDays
			}
			gateway, err := cache.Open(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer gateway.Close()

			sweeper := cache.NewSweeper(gateway, a.cfg.Cache.SweepInterval, a.cfg.Cache.Retention(), a.logger)
			removed, err := sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached responses\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "override CACHE_RETENTION_DAYS")
	return cmd
}

func (a *app) library() (*bills.Library, error) {
	catalog := bills.DefaultCatalog()
	if a.cfg.Bills.Catalog != "" {
		loaded, err := bills.LoadCatalog(a.cfg.Bills.Catalog)
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}
	return bills.NewLibrary(a.cfg.Bills.Dir, catalog, a.cfg.Bills.ContentTTL, a.logger), nil
}

// openGateway falls back to a disabled cache when the store is unreachable;
// answers are still served, only slower.
func (a *app) openGateway(ctx context.Context) cache.Gateway {
	gateway, err := cache.Open(ctx, a.cfg, a.logger)
	if err != nil {
		a.logger.Warn("response cache unavailable, continuing without it", zap.Error(err))
		return cache.NoopGateway{}
	}
	return gateway
}

func (a *app) chatService(ctx context.Context) (*chat.Service, *bills.Library, cache.Gateway, error) {
	library, err := a.library()
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := llm.NewClient(a.cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("llm setup: %w", err)
	}
	gateway := a.openGateway(ctx)

	service := chat.NewService(library, gateway, client, chat.Options{
		MaxContentUnits:   a.cfg.Chat.MaxContentUnits,
		ChunkUnits:        a.cfg.Chat.ChunkUnits,
		FilterConcurrency: a.cfg.Chat.FilterConcurrency,
		NormalizeQueries:  a.cfg.Cache.NormalizeQueries,
	}, a.logger)
	return service, library, gateway, nil
}

func (a *app) serve(ctx context.Context) error {
	shutdownTracing := tracing.Init(ctx, a.cfg.OTel, a.logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			a.logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	service, library, gateway, err := a.chatService(ctx)
	if err != nil {
		return err
	}
	defer gateway.Close()

	sweeper := cache.NewSweeper(gateway, a.cfg.Cache.SweepInterval, a.cfg.Cache.Retention(), a.logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	server := &http.Server{
		Addr:              net.JoinHostPort("", a.cfg.Port),
		Handler:           api.New(a.cfg, library, service, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening",
			zap.String("addr", server.Addr),
			zap.String("llm_provider", a.cfg.LLM.Provider),
			zap.String("cache_backend", a.cfg.Cache.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (a *app) ask(ctx context.Context, out io.Writer, req chat.Request) error {
	service, _, gateway, err := a.chatService(ctx)
	if err != nil {
		return err
	}
	defer gateway.Close()

	resp, err := service.Ask(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, resp.Answer)
	source := "generated"
	if resp.FromCache {
		source = "cached"
	}
	fmt.Fprintf(out, "\n(%s, %s path)\n", source, resp.Path)
	return nil
}

func printBills(out io.Writer, list []bills.Bill) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tFILE")
	for _, bill := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\n", bill.ID, bill.Name, bill.Filename)
	}
	return w.Flush()
}
