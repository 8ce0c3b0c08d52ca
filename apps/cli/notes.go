package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/export"
	"github.com/trezcool/masomo-portal/core/note"
)

func newNotesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "List, export and import notes",
	}
	cmd.AddCommand(newNotesListCmd(c), newNotesExportCmd(c), newNotesImportCmd(c))
	return cmd
}

func newNotesListCmd(c *cli) *cobra.Command {
	var ordering string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			orderings := core.ParseOrdering(ordering)
			notes, err := client.ListNotes(cmd.Context(), orderings...)
			if err != nil {
				return err
			}
			note.SortNotes(notes, orderings...)
			for _, n := range notes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", n.ID, n.Title, strings.Join(n.Tags, ","))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&ordering, "ordering", "o", "-updatedAt", "Comma separated sort fields, prefix with - for descending")
	return cmd
}

func newNotesExportCmd(c *cli) *cobra.Command {
	var (
		format string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "export NOTE_ID",
		Short: "Export a note as .txt or .pdf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			n, err := client.GetNote(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var a export.Artifact
			switch strings.TrimPrefix(strings.ToLower(format), ".") {
			case "txt":
				a = export.Text(n.Title, n.Content)
			case "pdf":
				if a, err = export.PDF(n.Title, n.Content, export.Options{WrapWidth: c.conf.ExportWrapWidth}); err != nil {
					return err
				}
			default:
				return errors.Errorf("unknown format %q: must be one of txt or pdf", format)
			}

			path := filepath.Join(outDir, a.Filename)
			if err := os.WriteFile(path, a.Data, 0o644); err != nil {
				return errors.Wrap(err, "writing export")
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "txt", "Export format: txt or pdf")
	cmd.Flags().StringVar(&outDir, "out", ".", "Directory to write the export to")
	return cmd
}

func newNotesImportCmd(c *cli) *cobra.Command {
	var (
		tags   []string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "import GLOB",
		Short: "Create notes from Markdown files",
		Long: `Create one note per Markdown file matching GLOB (for example "notes/**/*.md").
Front matter "title" and "tags" are honoured; without a title the file name is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			paths, err := doublestar.FilepathGlob(args[0], doublestar.WithFilesOnly())
			if err != nil {
				return errors.Wrapf(err, "matching %q", args[0])
			}
			if len(paths) == 0 {
				return errors.Errorf("no files match %q", args[0])
			}

			var failed int
			for _, path := range paths {
				e := note.NewEditor(nil, client, note.WithLogger(c.log))
				if err := importFile(e, path, tags); err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", path, err)
					continue
				}
				if dryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "would import %s as %q\n", path, e.Title())
					continue
				}
				n, err := e.Save(cmd.Context())
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "failed %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s as %s\n", path, n.ID)
			}
			if failed > 0 {
				return errors.Errorf("%d of %d files not imported", failed, len(paths))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Extra tag for every imported note (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse the files without saving")
	return cmd
}

func importFile(e *note.Editor, path string, tags []string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := e.ImportMarkdown(src); err != nil {
		return err
	}
	if core.CleanString(e.Title()) == "" {
		e.SetTitle(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	for _, tag := range tags {
		if err := e.AddTag(tag); err != nil && !errors.Is(err, note.ErrDuplicateTag) {
			return err
		}
	}
	return nil
}
