package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/fruitsalade/docdesk/internal/browser"
	"github.com/fruitsalade/docdesk/internal/deletion"
	"github.com/fruitsalade/docdesk/internal/events"
	"github.com/fruitsalade/docdesk/internal/upload"
	"github.com/fruitsalade/docdesk/pkg/client"
	"github.com/fruitsalade/docdesk/pkg/models"
	"github.com/fruitsalade/docdesk/pkg/vpath"
)

func newLsCmd(a *app) *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "ls [folder]",
		Short: "List a folder, folders first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}

			var g glob.Glob
			if match != "" {
				if g, err = glob.Compile(match); err != nil {
					return fmt.Errorf("invalid --match pattern: %w", err)
				}
			}

			folder := ""
			if len(args) == 1 {
				folder = args[0]
			}
			b := browser.New(a.client, sess.UserID, browser.Options{Start: vpath.Parse(folder)})
			if err := b.Refresh(cmd.Context(), false); err != nil {
				return describe(err)
			}

			var rows [][]string
			for _, e := range b.Entries() {
				if g != nil && !g.Match(e.DisplayName()) {
					continue
				}
				name := e.DisplayName()
				if e.IsFolder {
					name += "/"
				}
				rows = append(rows, []string{name, e.DisplaySize(), e.DisplayType(), e.DisplayModified()})
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "This folder is empty.")
				return nil
			}
			fmt.Fprintln(out, listingTable(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "only show names matching a glob, e.g. '*.pdf'")
	return cmd
}

func listingTable(rows [][]string) string {
	header := lipgloss.NewStyle().Bold(true)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("NAME", "SIZE", "TYPE", "MODIFIED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingRight(2)
			if row == table.HeaderRow {
				return header.PaddingRight(2)
			}
			return s
		})
	return t.String()
}

func newUploadCmd(a *app) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "upload <files...>",
		Short: "Upload local files into a folder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}

			items := make([]upload.Item, 0, len(args))
			for _, p := range args {
				it, err := upload.FromFile(p)
				if err != nil {
					return err
				}
				items = append(items, it)
			}

			bc := events.NewBroadcaster()
			b := browser.New(a.client, sess.UserID, browser.Options{
				Start:        vpath.Parse(to),
				RefreshDelay: a.cfg.RefreshDelay,
				MaxParallel:  a.cfg.MaxParallelUploads,
				Events:       bc,
			})
			b.AddUploads(items...)

			out := cmd.OutOrStdout()
			ch := bc.Subscribe()
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				printUploadEvents(out, ch)
			}()

			sum, err := b.StartUploads(cmd.Context())
			bc.Unsubscribe(ch)
			wg.Wait()

			for _, it := range b.Uploads().Items() {
				switch it.Status {
				case upload.StatusCompleted:
					fmt.Fprintf(out, "  done    %s\n", it.Name)
				case upload.StatusError:
					fmt.Fprintf(out, "  failed  %s: %s\n", it.Name, it.Err)
				}
			}
			fmt.Fprintf(out, "%d uploaded, %d failed\n", sum.Completed, sum.Failed)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not refresh listing: %v\n", describe(err))
			}
			if sum.Failed > 0 {
				return fmt.Errorf("%d upload(s) failed", sum.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destination folder (default is the root)")
	return cmd
}

// printUploadEvents draws progress on a terminal. Events may be dropped
// under load; final per-file results come from the queue.
func printUploadEvents(w io.Writer, ch chan events.Event) {
	tty := stdoutIsTerminal()
	for ev := range ch {
		if !tty {
			continue
		}
		switch ev.Type {
		case events.EventUploadProgress:
			fmt.Fprintf(w, "\r  %-40s %3d%%", ev.Path, ev.Progress)
		case events.EventUploadDone, events.EventError:
			fmt.Fprint(w, "\r\033[K")
		}
	}
}

func newRmCmd(a *app) *cobra.Command {
	var folder, yes bool

	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file or a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			target := strings.Trim(args[0], "/")
			if target == "" {
				return errors.New("refusing to delete the root folder")
			}

			ctx := cmd.Context()
			if !cmd.Flags().Changed("folder") {
				if folder, err = isFolder(ctx, a.client, sess.UserID, target); err != nil {
					return err
				}
			}

			w := deletion.New(a.client, nil)
			w.Request(target, folder)

			out := cmd.OutOrStdout()
			if !yes {
				kind := "file"
				if folder {
					kind = "folder and all its contents"
				}
				ok, err := newPrompter(cmd).confirm(fmt.Sprintf("Delete %s %q? This cannot be undone.", kind, target))
				if err != nil {
					return err
				}
				if !ok {
					w.Cancel()
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
			}

			if err := w.Confirm(ctx, sess.UserID); err != nil {
				return describe(err)
			}
			fmt.Fprintf(out, "Deleted %s\n", target)
			return nil
		},
	}
	cmd.Flags().BoolVar(&folder, "folder", false, "treat the path as a folder (detected when omitted)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// isFolder looks the target up in its parent listing.
func isFolder(ctx context.Context, c *client.Client, userID int64, target string) (bool, error) {
	parent, name := path.Split(target)
	entries, err := c.ListFiles(ctx, userID, strings.TrimSuffix(parent, "/"), client.ListOptions{})
	if err != nil {
		return false, describe(err)
	}
	for _, e := range entries {
		if e.DisplayName() == name {
			return e.IsFolder, nil
		}
	}
	return false, fmt.Errorf("%s: no such file or folder", target)
}

func newMkdirCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <folder/name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			parent, name := path.Split(strings.Trim(args[0], "/"))

			b := browser.New(a.client, sess.UserID, browser.Options{Start: vpath.Parse(parent)})
			if err := b.CreateFolder(cmd.Context(), name); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s/\n", vpath.Join(parent, strings.TrimSpace(name)))
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Download a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			src := strings.Trim(args[0], "/")
			if output == "" {
				output = path.Base(src)
			}

			rc, _, err := a.client.Download(cmd.Context(), sess.UserID, src)
			if err != nil {
				return describe(err)
			}
			return save(cmd.OutOrStdout(), rc, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default is the file name)")
	return cmd
}

func newDocumentCmd(a *app, kind string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   kind,
		Short: fmt.Sprintf("Download your %s as PDF", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			if output == "" {
				output = kind + ".pdf"
			}

			var rc io.ReadCloser
			if kind == "certificate" {
				rc, _, err = a.client.Certificate(cmd.Context(), sess.UserID)
			} else {
				rc, _, err = a.client.Transcript(cmd.Context(), sess.UserID)
			}
			if err != nil {
				return describe(err)
			}
			return save(cmd.OutOrStdout(), rc, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", fmt.Sprintf("output file, - for stdout (default is %s.pdf)", kind))
	return cmd
}

// save copies rc to dest and closes it. A partial file is removed.
func save(out io.Writer, rc io.ReadCloser, dest string) error {
	defer rc.Close()

	if dest == "-" {
		_, err := io.Copy(out, rc)
		return err
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("save %s: %w", dest, err)
	}
	abs, _ := filepath.Abs(dest)
	fmt.Fprintf(out, "Saved %s (%s)\n", abs, models.FormatSize(n))
	return nil
}
