// Command ruledbg debugs business rules: it executes a rule's source and
// prints the ordered debug steps as JSON.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	ruledbg "github.com/kdon22/ruledbg"
)

// errorSentinel precedes the fatal-failure JSON object on stdout so callers
// can split diagnostics from step output.
const errorSentinel = "__EXECUTION_ERROR__"

var (
	flagEngine  string
	flagConfig  string
	flagVerbose bool

	logger zerolog.Logger
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Println(errorSentinel)
			out, _ := json.Marshal(map[string]string{
				"error":     fmt.Sprint(r),
				"traceback": string(debug.Stack()),
			})
			fmt.Println(string(out))
			os.Exit(1)
		}
	}()

	root := &cobra.Command{
		Use:           "ruledbg",
		Short:         "Stepwise debugger for business rules",
		Version:       ruledbg.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if flagVerbose {
				level = zerolog.DebugLevel
			}
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).With().Timestamp().Logger()
		},
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose diagnostics")

	root.AddCommand(newDebugCmd(), newInstrumentCmd(), newReplCmd(), newWatchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newDebugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug [file]",
		Short: "Execute a rule and print its debug steps as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(flagConfig)
			if err != nil {
				return err
			}
			result := runDebug(src, cfg)
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&flagEngine, "engine", "", "execution engine: walk or instrument")
	return cmd
}

func newInstrumentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "instrument [file]",
		Short: "Print the instrumented source and its line map",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args)
			if err != nil {
				return err
			}
			inst, err := ruledbg.Instrument(src)
			if err != nil {
				return err
			}
			fmt.Print(inst.Source)
			fmt.Println("# line map (instrumented -> original):")
			enc, _ := json.Marshal(inst.LineMap)
			fmt.Printf("# %s\n", enc)
			return nil
		},
	}
}

// runDebug executes one isolated run configured from cfg and flags.
func runDebug(src string, cfg *config) ruledbg.Result {
	opts := ruledbg.Options{Sink: ruledbg.NewLogSink(os.Stderr)}
	defer opts.Sink.Close()

	engine := flagEngine
	if engine == "" {
		engine = cfg.Engine
	}
	if engine == "instrument" {
		opts.Engine = ruledbg.EngineInstrument
	}

	ctl := ruledbg.NewController()
	for _, line := range cfg.Breakpoints {
		ctl.AddBreakpoint(line)
	}
	switch {
	case cfg.TargetStep > 0:
		ctl.SetMode(ruledbg.ModeRunToTarget, cfg.TargetStep)
	case len(cfg.Breakpoints) > 0:
		ctl.SetMode(ruledbg.ModeContinue, 0)
	}
	opts.Controller = ctl

	logger.Debug().Str("engine", engine).Int("breakpoints", len(cfg.Breakpoints)).
		Msg("debugging rule")
	return ruledbg.DebugBusinessRuleWith(src, opts)
}

func readSource(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(args[0])
	return string(data), err
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
