package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"assetapi/internal/cli/ui"
	"assetapi/internal/client"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <ref>",
	Short: "Delete an image",
	Long:  "Delete an image by filename, /uploads/ path or URL. Deleting an image that is already gone succeeds.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		name := client.FilenameFromReference(args[0])
		if _, err := apiClient.Delete(ctx, name); err != nil {
			return fail(cmd, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatSuccess("Deleted "+name))
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <ref>",
	Short: "Show whether an image exists and its size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		res, err := apiClient.Check(ctx, client.FilenameFromReference(args[0]))
		if err != nil {
			return fail(cmd, err)
		}
		out := cmd.OutOrStdout()
		if !res.Exists {
			fmt.Fprintln(out, ui.FormatWarning("Not found"))
			return nil
		}
		fmt.Fprintln(out, ui.FormatSuccess(res.Filename))
		fmt.Fprintln(out, ui.FormatMuted(fmt.Sprintf("%s, modified %s",
			ui.FormatBytes(res.Size), res.Modified.Local().Format("2006-01-02 15:04:05"))))
		return nil
	},
}

var existsCmd = &cobra.Command{
	Use:   "exists <ref>",
	Short: "Exit 0 when the image URL answers, 1 otherwise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		ok, err := apiClient.Exists(ctx, args[0])
		if err != nil {
			return fail(cmd, err)
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "no")
			return fmt.Errorf("%s does not exist", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), "yes")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored images, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		items, err := apiClient.List(ctx)
		if err != nil {
			return fail(cmd, err)
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatInfo("No images stored"))
			return nil
		}
		rows := make([][]string, 0, len(items))
		for _, it := range items {
			rows = append(rows, []string{
				it.Filename,
				ui.FormatBytes(it.Size),
				it.ModifiedAt.Local().Format("2006-01-02 15:04"),
				it.URL,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Table([]string{"FILENAME", "SIZE", "MODIFIED", "URL"}, rows))
		return nil
	},
}

var urlCmd = &cobra.Command{
	Use:   "url <ref>",
	Short: "Print the absolute URL for a stored reference",
	Long:  "Resolve a filename or /uploads/ path against the API base URL. Absolute URLs are printed unchanged. No request is made.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), apiClient.ResolveURL(args[0]))
		return nil
	},
}
