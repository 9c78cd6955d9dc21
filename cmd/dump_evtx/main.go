// Dump the contents of EVTX files in readable format.
// Reference: https://docs.microsoft.com/en-us/openspecs/windows_protocols/ms-even6/c73573ae-1c90-43a2-a65f-ad7501155956
// (c) 2019, igosha (2igosha@gmail.com)
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/2igosha/ForensicsTools/igevtx"
	"github.com/spf13/cobra"
)

// Options holds the flags shared by the root command's run.
type Options struct {
	Debug bool
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		slog.Error(fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}

// NewRootCommand builds the dump_evtx CLI: each positional argument is an
// EVTX path, dumped to standard output. Per-file failures are reported
// inline; the exit code stays 0 (spec.md §6).
func NewRootCommand() *cobra.Command {
	opts := Options{}

	cmd := &cobra.Command{
		Use:   filepath.Base(os.Args[0]) + " FILE...",
		Short: "dump EVTX event records as readable key/value text",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.Debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			out := bufio.NewWriter(os.Stdout)
			defer out.Flush()

			for _, fname := range args {
				if err := dumpFile(fname, out); err != nil {
					slog.Debug("failed to parse", "file", fname, "error", err)
					fmt.Fprintf(out, "Failed on %s\n", fname)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "log verbose diagnostics to stderr")
	return cmd
}

func dumpFile(fname string, out *bufio.Writer) error {
	f, err := os.Open(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	return igevtx.ParseEvtx(f, out)
}
