package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-debug the rule every time the file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(args[0])
		},
	}
}

func watch(path string) error {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}

	run := func() {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error().Err(err).Msg("reading rule")
			return
		}
		if err := printJSON(runDebug(string(data), cfg)); err != nil {
			logger.Error().Err(err).Msg("writing result")
		}
	}
	run()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors often replace the file on save, which
	// drops a watch registered on the file itself.
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}
	target, _ := filepath.Abs(path)
	fmt.Fprintf(os.Stderr, "watching %s\n", path)

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			evPath, _ := filepath.Abs(ev.Name)
			if evPath != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				logger.Debug().Str("event", ev.Op.String()).Msg("rule changed")
				run()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("watch error")
		}
	}
}
