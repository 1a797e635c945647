// Command docview converts markdown files from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docview/internal/config"
	"github.com/dgallion1/docview/internal/convert"
	"github.com/dgallion1/docview/internal/export"
	"github.com/dgallion1/docview/internal/highlight"
	"github.com/dgallion1/docview/internal/session"
	"github.com/dgallion1/docview/internal/view"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "docview:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "docview",
		Short:         "Convert markdown into document trees, outlines and exports",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	logger := func() *slog.Logger {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	convertCmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Print the document tree of a markdown file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			doc := convert.Markdown(source, convertOptions(args[0]))
			return writeJSON(cmd.OutOrStdout(), doc)
		},
	}

	outlineCmd := &cobra.Command{
		Use:   "outline [file]",
		Short: "List the headings of a markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			entries := convert.Outline(source, convertOptions(args[0]))
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%*s%s\n", (e.Level-1)*2, "", e.Title)
			}
			return nil
		},
	}
	outlineCmd.Flags().Bool("json", false, "print the outline as JSON")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot [file]",
		Short: "Print the view snapshot of a markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			modeName, _ := cmd.Flags().GetString("mode")
			wait, _ := cmd.Flags().GetDuration("wait")
			mode, err := view.ParseMode(modeName)
			if err != nil {
				return err
			}

			log := logger()
			cfg := config.Load()
			// Local files are read from wherever the user points us.
			cfg.DocumentRoot = ""
			m := session.NewManager(cfg, log)
			defer m.Stop()

			s, err := m.Open(session.Options{
				Name:    filepath.Base(args[0]),
				BaseDir: baseDir(args[0]),
				Source:  source,
				Mode:    mode,
			})
			if err != nil {
				return err
			}

			if wait > 0 {
				s.Snapshot()
				ctx, cancel := context.WithTimeout(cmd.Context(), wait)
				defer cancel()
				if err := session.AwaitImages(ctx, s); err != nil {
					log.Warn("images still pending", "count", s.PendingImages(), "error", err)
				}
			}
			return writeJSON(cmd.OutOrStdout(), s.Snapshot())
		},
	}
	snapshotCmd.Flags().String("mode", string(view.ModeRendered), "view mode: rendered, source or split")
	snapshotCmd.Flags().Duration("wait", 0, "wait up to this long for images to resolve")

	highlightCmd := &cobra.Command{
		Use:   "highlight [file]",
		Short: "Print the syntax highlight spans of a markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			tokens, _ := cmd.Flags().GetBool("code-tokens")
			h := highlight.Highlighter{CodeTokens: tokens}
			return writeJSON(cmd.OutOrStdout(), h.Highlight(source))
		},
	}
	highlightCmd.Flags().Bool("code-tokens", true, "tokenize fenced code with a known language")

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export a markdown file as text, markdown, html or csv",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if format, _ := cmd.Flags().GetString("format"); !export.IsSupportedFormat(format) {
				return fmt.Errorf("%w: %s", export.ErrUnknownFormat, format)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("output")

			e, err := export.ForFormat(format)
			if err != nil {
				return err
			}

			opts := convertOptions(args[0])
			opts.Title = filepath.Base(args[0])
			doc := convert.Markdown(source, opts)

			if out == "" || out == "-" {
				return e.Export(cmd.OutOrStdout(), doc)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := e.Export(f, doc); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	exportCmd.Flags().StringP("format", "f", "html", "output format: text, markdown, html or csv")
	exportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	rootCmd.AddCommand(convertCmd, outlineCmd, snapshotCmd, highlightCmd, exportCmd)
	return rootCmd
}

// readSource reads a file, or stdin when path is "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func baseDir(path string) string {
	if path == "-" {
		return "."
	}
	return filepath.Dir(path)
}

func convertOptions(path string) convert.Options {
	return convert.Options{
		BaseDir:         baseDir(path),
		MonospaceFamily: os.Getenv("MONOSPACE_FONT"),
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
