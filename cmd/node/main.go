// This program runs the blockchain node: the HTTP control plane and
// node-to-node surface, the miner, the network worker and the transaction
// generator, wired together from configuration the way the teacher's own
// service entrypoints are built.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	v1 "github.com/coreledger/node/app/services/node/handlers/v1"
	"github.com/coreledger/node/app/services/node/transport"
	busv1 "github.com/coreledger/node/business/web/v1"
	"github.com/coreledger/node/foundation/blockchain/genesis"
	"github.com/coreledger/node/foundation/blockchain/state"
	"github.com/coreledger/node/foundation/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	log, err := buildLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "building logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	root := &cobra.Command{
		Use:   "node",
		Short: "coreledger node: run the blockchain node or inspect its fixed genesis identities",
	}
	root.AddCommand(newRunCommand(log))
	root.AddCommand(newIdentityCommand())

	if err := root.Execute(); err != nil {
		log.Errorw("startup", "error", err)
		os.Exit(1)
	}
}

func buildLogger() (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// =============================================================================
// run

// cfg is the node's runtime configuration, parsed by ardanlabs/conf from
// NODE_-prefixed environment variables or matching command-line flags.
type cfg struct {
	conf.Version

	Web struct {
		APIHost         string        `conf:"default:0.0.0.0:3000"`
		ReadTimeout     time.Duration `conf:"default:5s"`
		WriteTimeout    time.Duration `conf:"default:10s"`
		IdleTimeout     time.Duration `conf:"default:120s"`
		ShutdownTimeout time.Duration `conf:"default:20s"`
	}

	Node struct {
		P2PPort int `conf:"default:0"`
	}
}

func newRunCommand(log *zap.SugaredLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the node's HTTP control plane and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(log)
		},
	}
}

func runNode(log *zap.SugaredLogger) error {
	var c cfg
	c.Version = conf.Version{Build: "develop", Desc: "coreledger node"}

	help, err := conf.Parse("NODE", &c)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	identity, err := genesis.SelectIdentity(c.Node.P2PPort)
	if err != nil {
		return fmt.Errorf("selecting genesis identity: %w", err)
	}
	log.Infow("startup", "identity", identity.Address.String(), "p2p-port", c.Node.P2PPort)

	client := transport.New(c.Web.APIHost, log)

	st, err := state.New(state.Config{
		Log:      log,
		Identity: identity,
		Client:   client,
	})
	if err != nil {
		return fmt.Errorf("constructing node state: %w", err)
	}
	client.BindWorker(st.Worker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st.Run(ctx)

	shutdown := make(chan os.Signal, 1)
	app := web.NewApp(shutdown, logMiddleware(log), errorMiddleware(log))

	v1.PublicRoutes(app, v1.Config{Log: log, State: st})
	v1.PrivateRoutes(app, v1.Config{Log: log, State: st})

	srv := http.Server{
		Addr:         c.Web.APIHost,
		Handler:      app,
		ReadTimeout:  c.Web.ReadTimeout,
		WriteTimeout: c.Web.WriteTimeout,
		IdleTimeout:  c.Web.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infow("startup", "status", "api router started", "host", c.Web.APIHost)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		log.Infow("shutdown", "status", "shutdown started")
		defer log.Infow("shutdown", "status", "shutdown complete")

		sctx, cancel := context.WithTimeout(context.Background(), c.Web.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

	case <-shutdown:
		log.Errorw("shutdown", "status", "integrity issue signalled, shutting down")
	}

	return nil
}

func logMiddleware(log *zap.SugaredLogger) web.Middleware {
	return func(next web.Handler) web.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v, err := web.GetValues(ctx)
			if err != nil {
				return next(ctx, w, r)
			}

			log.Infow("request started", "traceid", v.TraceID, "method", r.Method, "path", r.URL.Path)
			err = next(ctx, w, r)
			log.Infow("request completed", "traceid", v.TraceID, "statuscode", v.StatusCode)

			return err
		}
	}
}

func errorMiddleware(log *zap.SugaredLogger) web.Middleware {
	return func(next web.Handler) web.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := next(ctx, w, r)
			if err == nil {
				return nil
			}

			v, verr := web.GetValues(ctx)
			traceID := ""
			if verr == nil {
				traceID = v.TraceID
			}

			status := http.StatusInternalServerError
			message := "internal error"
			if re, ok := busv1.IsRequestError(err); ok {
				status = re.Status
				message = re.Err.Error()
			}

			log.Errorw("request error", "traceid", traceID, "error", err, "statuscode", status)

			return web.Respond(ctx, w, web.Response{Success: false, Message: message}, status)
		}
	}
}

// =============================================================================
// identity

func newIdentityCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "identity",
		Short: "print the fixed genesis identity selected by a given p2p port",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := genesis.SelectIdentity(port)
			if err != nil {
				return err
			}
			fmt.Println(id.Address.String())
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "p2p-port", 0, "p2p port used to select one of the three fixed genesis identities")

	return cmd
}
