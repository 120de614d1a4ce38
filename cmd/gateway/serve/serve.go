package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/immanlabs/gateway/gateway"
	"github.com/immanlabs/gateway/pkg/logger"
)

const serveLongDesc string = `Run the gateway HTTP server.

Configuration comes from defaults, then the optional TOML config file,
then environment variables (HF_TOKEN for the upstream credential).
Flags given here override all of those.

Examples:
  gateway serve
  gateway serve --config gateway.toml --listen :8080
  HF_TOKEN=hf_xxx gateway serve --db chats.db`

type serveCommander struct {
	configPath string
	listenAddr string
	dbPath     string
	uploadDir  string
	debug      bool
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML config file")
	cmd.Flags().StringVarP(&cmder.listenAddr, "listen", "l", "", "Address to listen on")
	cmd.Flags().StringVar(&cmder.dbPath, "db", "", "Path to SQLite database (default: in-memory)")
	cmd.Flags().StringVar(&cmder.uploadDir, "uploads", "", "Upload directory")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	cfg, err := gateway.LoadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	if c.listenAddr != "" {
		cfg.ListenAddr = c.listenAddr
	}
	if c.dbPath != "" {
		cfg.DBPath = c.dbPath
	}
	if c.uploadDir != "" {
		cfg.UploadDir = c.uploadDir
	}
	if c.debug {
		cfg.Debug = true
	}

	log := logger.New(cfg.Debug)
	defer log.Sync()

	if cfg.Token == "" {
		log.Warn("no upstream token configured, inference calls will be rejected upstream")
	}

	g, err := gateway.New(cfg, log)
	if err != nil {
		return fmt.Errorf("could not create gateway: %w", err)
	}
	defer g.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case s := <-sigCh:
		log.Info("shutting down", zap.String("signal", s.String()))
		return g.Shutdown()
	}
}
