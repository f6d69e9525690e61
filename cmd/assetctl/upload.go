package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"assetapi/internal/cli/ui"
	"assetapi/internal/client"
)

var flagQuiet bool

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload an image and print its URL",
	Long: `Upload a local image. Images larger than 2 MB are shrunk and re-encoded
as JPEG before sending; the 10 MB limit applies to the original file.

Examples:
  assetctl upload ./cat.png
  assetctl upload --quiet ./holiday.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

var replaceCmd = &cobra.Command{
	Use:   "replace <old-ref> <path>",
	Short: "Upload an image, then delete the one it replaces",
	Long: `Upload a new image and, once it is stored, delete the old one.
<old-ref> may be a filename, an /uploads/ path or a full URL.
A failed delete of the old image is reported but does not fail the command.`,
	Args: cobra.ExactArgs(2),
	RunE: runReplace,
}

func init() {
	for _, c := range []*cobra.Command{uploadCmd, replaceCmd} {
		c.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "print only the URL")
	}
}

func runUpload(cmd *cobra.Command, args []string) error {
	f, err := client.FileFromPath(args[0])
	if err != nil {
		return fail(cmd, err)
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := apiClient.Upload(ctx, f, progressTo(cmd.ErrOrStderr()))
	endProgress(cmd.ErrOrStderr())
	if err != nil {
		return fail(cmd, err)
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func runReplace(cmd *cobra.Command, args []string) error {
	f, err := client.FileFromPath(args[1])
	if err != nil {
		return fail(cmd, err)
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := apiClient.Replace(ctx, args[0], f, progressTo(cmd.ErrOrStderr()))
	endProgress(cmd.ErrOrStderr())
	if err != nil {
		return fail(cmd, err)
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func progressTo(w io.Writer) client.ProgressFunc {
	if flagQuiet {
		return nil
	}
	bar := ui.NewProgressBar(40)
	return func(pct int) {
		fmt.Fprint(w, bar.Line(pct))
	}
}

func endProgress(w io.Writer) {
	if !flagQuiet {
		fmt.Fprintln(w)
	}
}

func printResult(w io.Writer, res *client.UploadResult) {
	if flagQuiet {
		fmt.Fprintln(w, res.URL)
		return
	}
	fmt.Fprintln(w, ui.FormatSuccess("Uploaded "+res.Filename))
	if res.Compressed {
		fmt.Fprintln(w, ui.FormatInfo(fmt.Sprintf("Compressed %s → %s",
			ui.FormatBytes(res.OriginalSize), ui.FormatBytes(res.Size))))
	}
	fmt.Fprintln(w, res.URL)
}
