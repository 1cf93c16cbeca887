// Command mp4seek cuts ISOBMFF/MP4 files at a sample boundary and
// rearranges the movie header ahead of the media data for progressive
// HTTP playback.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	mp4seek "github.com/arkadini/mp4seek"
	"github.com/arkadini/mp4seek/internal/log"
)

// errUsage marks a wrong-usage failure (bad argument count or value);
// main exits 2 for it, versus 1 for every other failure.
var errUsage = errors.New("usage error")

func main() {
	var verbose bool

	root := &cobra.Command{
		Use:           "mp4seek",
		Short:         "Temporal split and fast-start rearrangement of ISOBMFF/MP4 files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := log.New(verbose)
			if err != nil {
				return err
			}
			mp4seek.SetLogger(logger)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable development-mode structured logging")

	root.AddCommand(splitCmd(), faststartCmd(), syncpointsCmd(), inspectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func splitCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "split <in> <t_seconds>",
		Short: "Cut a file at t_seconds, discarding media data before the cut",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("%w: usage: mp4seek split <in> <t_seconds>", errUsage)
			}
			in := args[0]
			t, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("%w: invalid t_seconds %q", errUsage, args[1])
			}

			outPath := out
			if outPath == "" {
				outPath = in + ".split.mp4"
			}

			f, err := os.Open(in)
			if err != nil {
				return err
			}
			defer f.Close()

			of, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer of.Close()

			if _, err := mp4seek.Split(f, t, of); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default <in>.split.mp4)")
	return cmd
}

func faststartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "faststart <in> [out]",
		Short: "Move moov ahead of mdat for progressive HTTP playback",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("%w: usage: mp4seek faststart <in> [out]", errUsage)
			}
			out := ""
			if len(args) == 2 {
				out = args[1]
			}
			return runFaststart(args[0], out)
		},
	}
}

// runFaststart replaces a file in place when no explicit outfile is
// given: the rewrite lands in a temp file in the same directory, is
// chmod'd to match the source's mode bits, then renamed over it.
func runFaststart(in, out string) error {
	fi, err := os.Open(in)
	if err != nil {
		return err
	}
	defer fi.Close()

	info, err := fi.Stat()
	if err != nil {
		return err
	}

	var fo *os.File
	var tempPath string
	if out != "" {
		fo, err = os.Create(out)
	} else {
		fo, err = os.CreateTemp(filepath.Dir(in), ".mp4seek-faststart-*")
		if err == nil {
			tempPath = fo.Name()
		}
	}
	if err != nil {
		return err
	}

	_, writeErr := mp4seek.MoveHeaderAndWrite(fi, fo)
	closeErr := fo.Close()

	if writeErr != nil || closeErr != nil {
		if tempPath != "" {
			os.Remove(tempPath)
		}
		if writeErr != nil {
			return writeErr
		}
		return closeErr
	}

	if tempPath == "" {
		return nil
	}
	if err := os.Chmod(tempPath, info.Mode()); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := os.Rename(tempPath, in); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

func syncpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "syncpoints <in>",
		Short: "Print sync-sample times, one per line, for the first track with an stss",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: usage: mp4seek syncpoints <in>", errUsage)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			points, err := mp4seek.SyncPoints(f)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, p := range points {
				fmt.Fprintf(w, "%.3f\n", p)
			}
			return nil
		},
	}
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <in>",
		Short: "Dump the box tree and per-track codec/sync diagnostics",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: usage: mp4seek inspect <in>", errUsage)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			w := cmd.OutOrStdout()
			if err := mp4seek.DumpTree(f, w); err != nil {
				return err
			}

			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
			report, err := mp4seek.Inspect(f)
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "\nbrand=%s\n", report.MajorBrand)
			for _, tr := range report.Tracks {
				fmt.Fprintf(w, "track %d: codec=%s samples=%d duration=%.2fs timescale=%d\n",
					tr.TrackID, tr.Codec, tr.SampleCount, tr.Duration, tr.Timescale)
				if tr.SyncCount > 0 {
					fmt.Fprintf(w, "  sync samples=%d interval avg=%.3fs min=%.3fs max=%.3fs\n",
						tr.SyncCount, tr.SyncIntervalAvg, tr.SyncIntervalMin, tr.SyncIntervalMax)
				}
			}
			return nil
		},
	}
}
