package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	ruledbg "github.com/kdon22/ruledbg"
)

const (
	historyFile = ".ruledbg_history"
	promptMain  = "==> "
	promptCont  = "... "
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactively enter a rule and replay its steps one at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return repl()
		},
	}
}

func repl() error {
	fmt.Printf("ruledbg %s REPL\nEnter a rule; a blank line runs it. Type :quit to exit.\n", ruledbg.Version)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	engine := ruledbg.EngineTreeWalk
	for {
		code, ok := readRule(ln)
		if !ok {
			fmt.Println()
			return nil
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			switch {
			case trimmed == ":quit":
				return nil
			case trimmed == ":engine walk":
				engine = ruledbg.EngineTreeWalk
				fmt.Println("engine: tree-walk")
			case trimmed == ":engine instrument":
				engine = ruledbg.EngineInstrument
				fmt.Println("engine: instrumented")
			default:
				fmt.Println("unknown command. Type :quit to exit.")
			}
			continue
		}

		sink := ruledbg.NewLogSink(os.Stdout)
		result := ruledbg.DebugBusinessRuleWith(code, ruledbg.Options{Engine: engine, Sink: sink})
		sink.Close()
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
		if err := replaySteps(ln, result.DebugSteps); err != nil {
			return err
		}
	}
}

// readRule collects one rule: lines until a blank line. Returns false on
// EOF/abort.
func readRule(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if err != nil {
			return "", false
		}
		if strings.TrimSpace(line) == "" {
			return b.String(), true
		}
		// A leading command runs immediately.
		if b.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			return line, true
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

// replaySteps walks the captured steps one at a time: Enter advances, "a"
// dumps all remaining, "q" stops.
func replaySteps(ln *liner.State, steps []ruledbg.StepRecord) error {
	for i, step := range steps {
		printStep(i+1, len(steps), step)
		if i == len(steps)-1 {
			return nil
		}
		ans, err := ln.Prompt("[Enter=next, a=all, q=stop] ")
		if err != nil {
			return nil
		}
		switch strings.TrimSpace(ans) {
		case "q":
			return nil
		case "a":
			for j := i + 1; j < len(steps); j++ {
				printStep(j+1, len(steps), steps[j])
			}
			return nil
		}
	}
	return nil
}

func printStep(n, total int, step ruledbg.StepRecord) {
	vars, _ := json.Marshal(step.Variables)
	fmt.Printf("step %d/%d  line %d  %s\n", n, total, step.Line, step.Output)
	fmt.Printf("          vars: %s\n", vars)
	if step.Error != "" {
		fmt.Printf("          error: %s\n", step.Error)
	}
}
