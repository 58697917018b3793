package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"

	"github.com/yourusername/tiktock-go/internal/domain"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// humanizeSize formats a byte count with two decimals in the largest unit below 1024
func humanizeSize(bytes int64) string {
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", size, sizeUnits[unit])
}

// progressObserver renders a byte progress bar per item and a result block when it finishes
type progressObserver struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func newProgressObserver(out io.Writer) *progressObserver {
	return &progressObserver{out: out}
}

// ItemStarted returns a sink that creates the bar on the first report, once the size is known
func (o *progressObserver) ItemStarted(req domain.MediaRequest) domain.ProgressSink {
	o.bar = nil
	description := fmt.Sprintf("[%d/%d] Downloading %s", req.SequenceIndex, req.TotalCount, domain.ExtractID(req.URL))

	return domain.ProgressFunc(func(downloaded, total int64) {
		if o.bar == nil {
			o.bar = progressbar.NewOptions64(total,
				progressbar.OptionSetWriter(o.out),
				progressbar.OptionSetDescription(description),
				progressbar.OptionShowBytes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionSetElapsedTime(false),
				progressbar.OptionClearOnFinish(),
			)
		}
		o.bar.Set64(downloaded)
	})
}

// ItemStateChanged is not rendered; the bar and the result block cover fetching and the final state
func (o *progressObserver) ItemStateChanged(domain.MediaRequest, domain.ItemState) {}

// ItemFinished clears the bar and prints the item's result
func (o *progressObserver) ItemFinished(req domain.MediaRequest, outcome domain.DownloadOutcome) {
	if o.bar != nil {
		o.bar.Finish()
		o.bar = nil
	}
	printOutcome(o.out, outcome)
}

func printOutcome(out io.Writer, outcome domain.DownloadOutcome) {
	status := "✓"
	if !outcome.Success {
		status = "✗"
	}
	outputPath := outcome.OutputPath
	if outputPath == "" {
		outputPath = "None"
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\t%s\n", outcome.URL)
	fmt.Fprintf(w, "Author\t%s\n", outcome.Author)
	fmt.Fprintf(w, "Size\t%s\n", humanizeSize(outcome.SizeBytes))
	fmt.Fprintf(w, "Output\t%s\n", outputPath)
	fmt.Fprintf(w, "Status\t%s\n", status)
	if outcome.ErrorMessage != "" {
		fmt.Fprintf(w, "Error\t%s\n", outcome.ErrorMessage)
	}
	w.Flush()
	fmt.Fprintln(out)
}

// printSummary prints the success/failure counts and a table of failures
func printSummary(out io.Writer, report *domain.BatchReport) {
	fmt.Fprintln(out, "Download Summary:")
	fmt.Fprintf(out, "  Successful: %d\n", len(report.Completed))
	fmt.Fprintf(out, "  Failed:     %d\n", len(report.Failed))
	fmt.Fprintf(out, "  Total:      %d\n", report.Processed())

	if len(report.Failed) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Details of Failed Downloads:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tURL\tERROR")
	for i, f := range report.Failed {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, f.URL, f.Error)
	}
	w.Flush()
	fmt.Fprintf(out, "Total: %d videos failed\n", len(report.Failed))
}
