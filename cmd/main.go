package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/takatori/ftmq-api/internal"
	"github.com/takatori/ftmq-api/internal/app"
	"github.com/takatori/ftmq-api/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ftmq-api",
	Short: "Read-only query api over a FollowTheMoney entity store",
	Long: `ftmq-api serves the entities of a statement store over http: filtering,
pagination, sorting, aggregations, full text search, autocomplete and similar
entity lookup, scoped by the datasets of a catalog.

Configuration is read from the environment (FTMQ_API_*).`,
	SilenceUsage: true,
	RunE:         serve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the http api (default)",
	RunE:  serve,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the api version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), internal.Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, catalogCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*app.App, error) {
	config, err := internal.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := internal.NewLogger(config)
	slog.SetDefault(logger)

	return app.Open(ctx, config)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("failed to close backends", slog.String("error", err.Error()))
		}
	}()

	e, err := server.InitServer(a)
	if err != nil {
		log.Fatal("Failed to initialize server: ", err)
	}

	go func() {
		slog.Info("starting server", slog.String("addr", a.Config.EchoAddr))
		if err := e.Start(a.Config.EchoAddr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(ctx)
}
