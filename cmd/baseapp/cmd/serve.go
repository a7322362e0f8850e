package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/GoCodeAlone/baseapp/modules/httpserver"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command
func NewServeCommand(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Boot the application and serve HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd, opts, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func serve(ctx context.Context, cmd *cobra.Command, opts *globalOptions, addr string) error {
	inst, err := opts.boot(cmd)
	if err != nil {
		return err
	}
	defer inst.close(context.WithoutCancel(ctx))

	handler, err := inst.boot.Handler(inst.app)
	if err != nil {
		return err
	}
	serverCfg := inst.boot.Config().Server
	if addr != "" {
		serverCfg.Addr = addr
	}
	srv := httpserver.New(serverCfg, handler, inst.logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	select {
	case err := <-srv.Done():
		return err
	case <-ctx.Done():
	}
	return srv.Stop(context.WithoutCancel(ctx))
}
