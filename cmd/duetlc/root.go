package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/snpike/duet-astro/internal/config"
)

// app carries state shared by every subcommand.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:           "duetlc",
		Short:         "Synthesize observed light curves for a low Earth orbit telescope",
		Long:          "duetlc turns a model light curve into the light curve a telescope in low Earth orbit would record: the model is observed only inside scheduled and visible windows, cut into fixed exposures, and averaged over each exposure.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (yaml or toml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSynthCmd(a),
		newVisibilityCmd(a),
		newIntersectCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

// setup binds the command's flags to their config keys, then loads the
// configuration and builds the logger. Flags only override a key when they
// were set on the command line.
func (a *app) setup(cmd *cobra.Command, bindings map[string]string) error {
	bindings["log-level"] = config.KeyLogLevel
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("internal: no flag %q for key %q", flag, key)
		}
		if err := a.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %q: %w", flag, err)
		}
	}

	bootstrap := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), nil))
	cfg, err := config.Load(a.v, a.configFile, bootstrap)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
	return nil
}

// output returns the destination for command results: the file at path, or
// the command's stdout for "" and "-". The returned close function must be
// called.
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output: %w", err)
	}
	return f, f.Close, nil
}
