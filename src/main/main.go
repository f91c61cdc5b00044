package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sst/src/clipboard"
	"sst/src/config"
	"sst/src/eventloop"
	"sst/src/imagefile"
	"sst/src/logutil"
	"sst/src/naming"
	"sst/src/overlay"
	"sst/src/screenshot"
	"sst/src/session"
)

type mainOptions struct {
	configPath string
	saveDir    string
	lineWidth  int
	color      string
	clipboard  string
	display    string
	region     string
	printPath  bool
	verbose    bool

	initConfig bool
}

func main() {
	if err := runWithArgs(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"sst"}
	}

	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sst",
		Short:         "Select a screen region, save it as PNG and copy it to the clipboard",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd, *opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the TOML config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging to stderr")

	cmd.Flags().StringVar(&opts.saveDir, "save-dir", "", "Directory the PNG is written to")
	cmd.Flags().IntVar(&opts.lineWidth, "line-width", 0, "Selection outline width in pixels")
	cmd.Flags().StringVar(&opts.color, "color", "", "Selection outline colour (#rrggbb or r,g,b)")
	cmd.Flags().StringVar(&opts.clipboard, "clipboard", "", "Clipboard backend: command, native, path or none")
	cmd.Flags().StringVar(&opts.display, "display", "", "X display to use (default $DISPLAY)")
	cmd.Flags().StringVar(&opts.region, "region", "", "Capture x,y,w,h without interactive selection")
	cmd.Flags().BoolVar(&opts.printPath, "print-path", false, "Print the saved file path to stdout")

	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

func newConfigCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.initConfig {
				return initConfig(cmd, *opts)
			}
			cfg, err := config.LoadWithOptions(config.LoadOptions{ConfigPath: opts.configPath})
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return config.Encode(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().BoolVar(&opts.initConfig, "init", false, "Write the default configuration if no config file exists")
	return cmd
}

func initConfig(cmd *cobra.Command, opts mainOptions) error {
	path, err := config.PathFor(config.LoadOptions{ConfigPath: opts.configPath})
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := config.WriteFile(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func runCapture(cmd *cobra.Command, opts mainOptions) error {
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		ConfigPath:       opts.configPath,
		SaveDir:          opts.saveDir,
		LineWidth:        opts.lineWidth,
		OutlineColor:     opts.color,
		ClipboardBackend: opts.clipboard,
		Display:          opts.display,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logs, err := logutil.Setup(logutil.Options{
		Verbose:           opts.verbose,
		EnableFileLogging: cfg.EnableFileLogging,
		LogFile:           cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer logs.Close()
	if cfg.Path != "" {
		log.Debugf("config loaded from %s", cfg.Path)
	}

	pub, err := clipboard.New(cfg.ClipboardBackend, cfg.ClipboardCommand, cfg.ClipboardHold())
	if err != nil {
		return err
	}
	sessOpts := session.Options{
		Encoder:   imagefile.PNGEncoder{},
		Publisher: pub,
		Names:     naming.New(cfg.SaveDir),
	}

	ctx := cmd.Context()
	var res session.Result
	if opts.region != "" {
		region, err := parseRegion(opts.region)
		if err != nil {
			return err
		}
		sessOpts.Surface = screenshot.ScreenSurface{}
		res, err = session.Execute(ctx, region, sessOpts)
		if err != nil {
			return err
		}
	} else {
		res, err = selectAndCapture(ctx, cfg, sessOpts)
		if err != nil {
			return err
		}
	}

	if !res.Captured {
		log.Info("selection too small, nothing captured")
		return nil
	}
	if opts.printPath {
		fmt.Fprintln(cmd.OutOrStdout(), res.Path)
	}
	return nil
}

func selectAndCapture(ctx context.Context, cfg *config.Config, sessOpts session.Options) (session.Result, error) {
	display, err := overlay.OpenX11(overlay.Options{
		Display:      cfg.Display,
		LineWidth:    cfg.LineWidth,
		OutlineColor: cfg.OutlineColor,
	})
	if err != nil {
		return session.Result{}, err
	}
	defer func() {
		if err := display.Close(); err != nil {
			log.Warnf("failed to release display resources: %v", err)
		}
	}()

	return eventloop.New(display, sessOpts).Run(ctx)
}

// parseRegion reads "x,y,w,h".
func parseRegion(s string) (screenshot.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return screenshot.Region{}, fmt.Errorf("invalid region %q: want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return screenshot.Region{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] < 1 || v[3] < 1 {
		return screenshot.Region{}, fmt.Errorf("invalid region %q: width and height must be positive", s)
	}
	return screenshot.Region{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}
