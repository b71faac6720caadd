package main

import (
	"fmt"
	"io"
	"strings"

	deployer "github.com/goliatone/go-deployer"
	"github.com/goliatone/go-deployer/core"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var NoProgress bool

var deployCmd = &cobra.Command{
	Use:   "deploy SITE_ID:PATH...",
	Short: "Deploy cached pages to their mapped Netlify sites",
	Long: `
Each argument names a cached page as SITE_ID:PATH, e.g. 1:/about. A bare
SITE_ID deploys the site root. Pages are grouped by the Netlify site their
site maps to and each group is uploaded as one zip deploy.
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uris, err := parseSiteURIArgs(args)
		if err != nil {
			return err
		}
		if SnapshotsDir == "" {
			return fmt.Errorf("deployer: no snapshot directory set; use --snapshots or set it in your config file")
		}

		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		var bar *progressBar
		var progress core.ProgressFunc
		if !NoProgress {
			bar = newProgressBar(cmd.ErrOrStderr())
			progress = bar.Update
		}
		report, err := rt.Deployer.Deploy(cmd.Context(), deployer.DeployRequest{
			SiteURIs: uris,
			Progress: progress,
		})
		bar.Wait()

		printRunReport(cmd.OutOrStdout(), report)
		return err
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().BoolVar(&NoProgress, "no-progress", false, "do not render the progress bar")
}

func parseSiteURIArgs(args []string) ([]core.SiteURI, error) {
	uris := make([]core.SiteURI, 0, len(args))
	for _, arg := range args {
		siteID, path, found := strings.Cut(strings.TrimSpace(arg), ":")
		if !found || strings.TrimSpace(path) == "" {
			path = "/"
		}
		uri := core.SiteURI{SiteID: strings.TrimSpace(siteID), Path: strings.TrimSpace(path)}
		if err := uri.Validate(); err != nil {
			return nil, fmt.Errorf("deployer: invalid page %q: %w", arg, err)
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

// progressBar renders deploy progress. The bar is created on the first
// update, once the run total is known.
type progressBar struct {
	progress *mpb.Progress
	bar      *mpb.Bar
	label    string
}

func newProgressBar(out io.Writer) *progressBar {
	return &progressBar{progress: mpb.New(mpb.WithWidth(64), mpb.WithOutput(out))}
}

func (p *progressBar) Update(count int, total int, label string) {
	p.label = label
	if total <= 0 {
		return
	}
	if p.bar == nil {
		p.bar = p.progress.AddBar(int64(total),
			mpb.PrependDecorators(
				decor.Name("deploy:", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("(%d/%d) "),
				decor.NewPercentage("%d"),
			),
		)
	}
	p.bar.SetCurrent(int64(count))
}

// Wait completes the bar and flushes the renderer.
func (p *progressBar) Wait() {
	if p == nil {
		return
	}
	if p.bar != nil {
		p.bar.SetTotal(-1, true)
	}
	p.progress.Wait()
}

func printRunReport(out io.Writer, report core.RunReport) {
	if report.RunID == "" {
		return
	}
	fmt.Fprintf(out, "run %s: %d/%d pages processed, %d written\n", report.RunID, report.Processed, report.Total, report.Written)
	for _, deploy := range report.Deploys {
		url := deploy.Record.DeploySSLURL
		if url == "" {
			url = deploy.Record.DeployURL
		}
		fmt.Fprintf(out, "  deployed %d files to %s: %s %s\n", deploy.Files, deploy.TargetSiteID, deploy.Record.State, url)
	}
	for _, skip := range report.Skips {
		line := fmt.Sprintf("  skipped %s (%s)", skip.SiteURI, skip.Reason)
		if skip.Err != nil {
			line += ": " + skip.Err.Error()
		}
		fmt.Fprintln(out, line)
	}
	for _, err := range report.Errors {
		fmt.Fprintf(out, "  error: %v\n", err)
	}
}
