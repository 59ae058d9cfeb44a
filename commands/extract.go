package commands

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mempirate/electionjobs/content"
	"github.com/mempirate/electionjobs/job"
	"github.com/mempirate/electionjobs/scrape"
)

var mirrorPath = regexp.MustCompile(`(\d{4})[/\\](\d{2}-\d{2})\.html$`)

func init() {
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <path/to/YYYY/MM-DD.html>",
	Short: "Prints the postings found in a mirrored issue page.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		issue, ok := issueFromPath(args[0])
		if !ok {
			return errors.Errorf("%s is not a mirrored issue path (<year>/<MM-DD>.html)", args[0])
		}

		// Links in the page resolve against the live issue address.
		fetcher, err := scrape.NewFetcher(cfg.BaseURL, scrape.ClientOptions{})
		if err != nil {
			return err
		}
		issue.URL = fetcher.IssueURL(issue)

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		postings, err := content.ExtractPostings(cmd.Context(), f, issue)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, p := range postings {
			fmt.Fprintf(out, "%s\t%s\t%s\n", p.Key(), p.Link, p.Description)
		}

		return nil
	},
}

func issueFromPath(path string) (job.Issue, bool) {
	m := mirrorPath.FindStringSubmatch(path)
	if m == nil {
		return job.Issue{}, false
	}

	year, err := strconv.Atoi(m[1])
	if err != nil {
		return job.Issue{}, false
	}

	return job.Issue{Year: year, Date: m[2]}, true
}
