package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/YLivay/chunkview/config"
	"github.com/YLivay/chunkview/log"
	"github.com/YLivay/chunkview/reader"
	"github.com/YLivay/chunkview/table"
	"github.com/spf13/cobra"
)

func main() {
	cobra.CheckErr(NewCLI().ExecuteContext(context.Background()))
}

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chunkview [flags] FILE|-",
		Short: "Page through large delimited files one chunk at a time",
		Long: "Page through large delimited files one chunk at a time, keeping only a\n" +
			"bounded window of the file in memory. Use - to read from stdin.",
		Args: cobra.ExactArgs(1),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
		RunE: runHandler,
	}

	flags := rootCmd.Flags()
	flags.StringP("config", "c", "", "Config file (default $"+config.EnvVar+" or ./"+config.DefaultFile+")")
	flags.BoolP("header", "H", false, "Use the first line as column names")
	flags.BoolP("regex", "r", false, "Treat the search value as a regular expression")
	flags.StringP("search", "s", "", "Only show rows matching column:value")
	flags.String("jq", "", "Only show rows for which a jq expression is true")
	flags.String("separator", ",", "Column separator")
	flags.String("delimiter", `\n`, "Line delimiter")
	flags.Int("chunk-size", 1000, "Lines per chunk")
	flags.String("buffer-size", "64", "Bytes held in memory, in MiB or with a unit like 512KB")
	flags.BoolP("print", "p", false, "Print every chunk as a table instead of starting the viewer")
	flags.String("log-file", "", "Write logs to this file")
	flags.Bool("debug", false, "Log buffer loads")

	return rootCmd
}

// loadConfig reads the config file, if any, and applies the flags that were
// set on the command line on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	cfg := config.Default()
	if path := config.Resolve(configPath); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	if flags.Changed("header") {
		cfg.Header, _ = flags.GetBool("header")
	}
	if flags.Changed("regex") {
		cfg.Regex, _ = flags.GetBool("regex")
	}
	if flags.Changed("search") {
		cfg.Search, _ = flags.GetString("search")
	}
	if flags.Changed("separator") {
		sep, _ := flags.GetString("separator")
		if sep == "" {
			return cfg, fmt.Errorf("%w: separator must not be empty", config.ErrConfig)
		}
		cfg.Separator = sep
	}
	if flags.Changed("delimiter") {
		s, _ := flags.GetString("delimiter")
		delim, err := config.ParseDelimiter(s)
		if err != nil {
			return cfg, err
		}
		cfg.Delimiter = delim
	}
	if flags.Changed("chunk-size") {
		n, _ := flags.GetInt("chunk-size")
		if n <= 0 {
			return cfg, fmt.Errorf("%w: chunk size must be positive, got %d", config.ErrConfig, n)
		}
		cfg.ChunkSize = n
	}
	if flags.Changed("buffer-size") {
		s, _ := flags.GetString("buffer-size")
		size, err := config.ParseSize(s)
		if err != nil {
			return cfg, err
		}
		cfg.BufferSize = size
	}

	return cfg, nil
}

func tableOptions(cmd *cobra.Command, cfg config.Config) (table.Options, error) {
	opts := table.Options{
		Separator: cfg.Separator,
		UseHeader: cfg.Header,
		Search:    cfg.Search,
		Regex:     cfg.Regex,
	}

	if expr, _ := cmd.Flags().GetString("jq"); expr != "" {
		filter, err := table.NewJQFilter(expr)
		if err != nil {
			return opts, err
		}
		opts.Filter = filter
	}
	return opts, nil
}

// setupLogging sends logs to the --log-file if given. Otherwise logs are
// dropped while the viewer owns the terminal and go to stderr in print mode.
func setupLogging(cmd *cobra.Command, interactive bool) (cleanup func(), err error) {
	cleanup = func() {}

	debug, _ := cmd.Flags().GetBool("debug")
	log.SetDebug(debug)

	logFile, _ := cmd.Flags().GetString("log-file")
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		log.SetOutput(f)
		cleanup = func() {
			log.SetOutput(io.Discard)
			f.Close()
		}
	case interactive:
		log.SetOutput(io.Discard)
	default:
		log.SetOutput(cmd.ErrOrStderr())
	}
	return cleanup, nil
}

func runHandler(cmd *cobra.Command, args []string) error {
	printMode, _ := cmd.Flags().GetBool("print")
	interactive := !printMode && isInteractive()

	cleanupLogging, err := setupLogging(cmd, interactive)
	if err != nil {
		return err
	}
	defer cleanupLogging()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := tableOptions(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, cancelCtx := context.WithCancel(cmd.Context())
	cleanupOsSignals := setupOsSignals(ctx, cancelCtx)
	defer cleanupOsSignals()

	path, cleanupInput, err := prepareInput(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanupInput()

	r, err := reader.Open(path, cfg.ChunkSize, cfg.BufferSize,
		reader.WithDelimiter(cfg.Delimiter),
		reader.WithLogger(log.Default()),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	if !interactive {
		err = printChunks(ctx, cmd.OutOrStdout(), r, opts)
	} else {
		name := args[0]
		if name == "-" {
			name = "stdin"
		}
		fi, statErr := os.Stat(path)
		if statErr != nil {
			return statErr
		}

		app := NewApplication(r, name, fi.Size(), opts, cfg.HighlightLines)
		err = app.Run(ctx)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func setupOsSignals(ctx context.Context, cancelCtx context.CancelFunc) (cleanup func()) {
	// Catch ctrl+c signal and make it close the context instead of immediately
	// exiting. This allows us to do some cleanup.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)

	cleanup = func() {
		signal.Stop(signalChan)
		cancelCtx()
	}

	go func() {
		select {
		case <-signalChan:
			log.Println("Ctrl+C pressed")
			cancelCtx()
		case <-ctx.Done():
		}
	}()

	return cleanup
}
