/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mangascript/internal/domain"
	"mangascript/internal/editor"
	"mangascript/internal/export"
	"mangascript/internal/script"
	"mangascript/internal/storage"
	"mangascript/internal/ui"
	"mangascript/internal/workspace"
)

func newPagesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "pages <dir>",
		Short: "List the pages of an image folder in reading order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tPAGE\tLINES\tTAGS\tSIZE")
			for i, p := range ws.Pages() {
				lines, tags := 0, 0
				if p.HasText() {
					lines = domain.LineCount(p.Text)
					for _, n := range p.Tags.Lines() {
						if n <= lines && p.Tags[n] != domain.TagNone {
							tags++
						}
					}
				}
				size := "-"
				if p.Image.Width > 0 {
					size = fmt.Sprintf("%dx%d", p.Image.Width, p.Image.Height)
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", i+1, p.Name, lines, tags, size)
			}
			return tw.Flush()
		},
	}
}

func newImportCmd(c *cli) *cobra.Command {
	var autoSpace bool
	cmd := &cobra.Command{
		Use:   "import <dir> <script>",
		Short: "Import a script file into a folder and save the project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("auto-space") {
				c.cfg.Editor.AutoSpace = autoSpace
			}
			ws, err := c.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := ws.ImportFile(args[1])
			if err != nil {
				return err
			}
			if err := ws.Save(cmd.Context()); err != nil {
				return err
			}
			printImport(cmd, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoSpace, "auto-space", false, "insert a blank line between script lines")
	return cmd
}

func printImport(cmd *cobra.Command, res script.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d page(s) with %d tag(s) (%s format)\n", len(res.Updates), res.TagCount(), res.Format)
}

func newExportCmd(c *cli) *cobra.Command {
	var (
		formats []string
		outDir  string
		page    int
	)
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Write export files for a folder",
		Long: "Write export files for a folder. Formats: " + formatNames() + ".\n" +
			"Presets: save, review, print. Without --format the configured formats are used.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := export.ParseFormats(formats)
			if err != nil {
				return err
			}
			ws, err := c.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if page > 0 {
				if err := ws.Session().Activate(page - 1); err != nil {
					return fmt.Errorf("page %d: %w", page, err)
				}
			}
			written, err := ws.Export(fs, outDir)
			for _, p := range written {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "formats or presets, comma separated")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().IntVar(&page, "page", 0, "1-based page for the page format (default first)")
	return cmd
}

func formatNames() string {
	names := make([]string, 0, len(export.AllFormats))
	for _, f := range export.AllFormats {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

func newTagCmd(c *cli) *cobra.Command {
	var (
		page  int
		lines string
		tag   string
	)
	cmd := &cobra.Command{
		Use:   "tag <dir>",
		Short: "Tag lines of a page and save the project",
		Long:  "Tag lines of a page and save the project. --tag takes a tag such as OT: or SFX:, a shortcut key 0-9, or clear.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTagArg(tag)
			if err != nil {
				return err
			}
			ws, err := c.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			s := ws.Session()
			if err := s.Activate(page - 1); err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			nums, err := parseLines(lines, s.LineCount())
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			for _, n := range nums {
				if err := s.SetLineTag(n, t); err != nil {
					return fmt.Errorf("line %d: %w", n, err)
				}
			}
			if err := ws.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tagged %d line(s) on page %d as %s\n", len(nums), page, t.Label())
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "1-based page number")
	cmd.Flags().StringVar(&lines, "lines", "", "line numbers, e.g. 2 or 1-3,5")
	cmd.Flags().StringVar(&tag, "tag", "", "tag, shortcut key or clear")
	_ = cmd.MarkFlagRequired("lines")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

func parseTagArg(s string) (domain.Tag, error) {
	if strings.EqualFold(s, "clear") {
		return domain.TagNone, nil
	}
	if r := []rune(s); len(r) == 1 {
		if t, ok := domain.TagForKey(r[0]); ok {
			return t, nil
		}
	}
	return domain.ParseTag(s)
}

// parseLines expands "1-3,5" into line numbers in the order given, without duplicates.
// Numbers past maxLine are rejected before any range is expanded.
func parseLines(s string, maxLine int) ([]int, error) {
	seen := map[int]bool{}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || a < 1 {
			return nil, fmt.Errorf("invalid line %q", part)
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil || b < a {
				return nil, fmt.Errorf("invalid line range %q", part)
			}
		}
		if b > maxLine {
			return nil, fmt.Errorf("%w: %q, the page has %d line(s)", editor.ErrLineOutOfRange, part, maxLine)
		}
		for n := a; n <= b; n++ {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no lines given")
	}
	return out, nil
}

func newIndexCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "index <dir>",
		Short: "Rebuild the search index of a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := ws.RebuildIndex(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Index rebuilt:", storage.IndexPath(ws.Root()))
			return nil
		},
	}
}

func newSearchCmd(c *cli) *cobra.Command {
	var (
		tags     []string
		from, to int
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "search <dir> [text]",
		Short: "Search saved script lines by text and tag",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := storage.SearchQuery{PageFrom: from, PageTo: to, Limit: limit}
			if len(args) == 2 {
				q.Text = args[1]
			}
			for _, s := range tags {
				t, err := parseTagArg(s)
				if err != nil {
					return err
				}
				q.Tags = append(q.Tags, t)
			}
			ws, err := c.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := ws.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range res {
				fmt.Fprintf(tw, "%d:%d\t%s\t%s\t%s\n", r.Page, r.Line, r.PageName, r.Tag, r.Text)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d match(es)\n", len(res))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "only lines with these tags (clear matches untagged lines)")
	cmd.Flags().IntVar(&from, "from", 0, "first 1-based page")
	cmd.Flags().IntVar(&to, "to", 0, "last 1-based page")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default 100)")
	return cmd
}

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <dir> <page>",
		Short: "Show saved revisions of a page, newest first",
		Long:  "Show saved revisions of a page, newest first. <page> is a 1-based number or an image name.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			i, err := pageIndex(ws, args[1])
			if err != nil {
				return err
			}
			revs, err := ws.History(cmd.Context(), i, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range revs {
				fmt.Fprintf(out, "== %s (%d tag(s))\n", r.TS.Local().Format(time.DateTime), len(r.Tags))
				fmt.Fprintln(out, r.Text)
			}
			if len(revs) == 0 {
				fmt.Fprintln(out, "No saved revisions.")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum revisions")
	return cmd
}

func pageIndex(ws *workspace.Workspace, arg string) (int, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		return n - 1, nil
	}
	if i := ws.Session().Store().IndexOf(arg); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("no page named %q", arg)
}

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir> <script>",
		Short: "Re-import a script file into a folder whenever it changes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ws, err := c.open(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", args[1])
			err = ws.WatchScript(ctx, args[1], func(res script.Result, err error) {
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
					return
				}
				printImport(cmd, res)
			})
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		},
	}
}

func newUICmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ui [dir]",
		Short: "Launch the desktop viewer (build with -tags fyne)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var dir string
			if len(args) == 1 {
				dir = args[0]
			}
			c.log.Info("launch ui", slog.String("dir", dir))
			return ui.Run(dir)
		},
	}
}
