package app

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/tiktock-go/internal/domain"
)

// TimestampLayout formats the {timestamp} template placeholder
const TimestampLayout = "20060102_150405"

const mediaExtension = ".mp4"

var unsafeFilenameChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_",
	"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

// Namer derives output paths for the items of one batch.
// The timestamp is fixed when the namer is created so every name in a run is reproducible.
type Namer struct {
	strategy  domain.FilenameStrategy
	template  string
	timestamp string
}

// NewNamer creates a namer for opts, stamping {timestamp} with startedAt
func NewNamer(opts domain.DownloadOptions, startedAt time.Time) *Namer {
	strategy := opts.FilenameStrategy
	if strategy == "" {
		strategy = domain.FilenameByID
		if opts.FilenameTemplate != "" {
			strategy = domain.FilenameByTemplate
		}
	}
	return &Namer{
		strategy:  strategy,
		template:  opts.FilenameTemplate,
		timestamp: startedAt.Format(TimestampLayout),
	}
}

// BaseName returns the file name without directory for req.
// resolvedURL is the item URL after short-link resolution.
func (n *Namer) BaseName(req domain.MediaRequest, resolvedURL string) string {
	index := strconv.Itoa(req.SequenceIndex)

	var name string
	switch n.strategy {
	case domain.FilenameByIndex:
		name = index
	case domain.FilenameByTemplate:
		name = strings.NewReplacer(
			"{index}", index,
			"{author}", domain.ExtractAuthor(resolvedURL),
			"{id}", domain.ExtractID(resolvedURL),
			"{timestamp}", n.timestamp,
		).Replace(n.template)
	default:
		name = domain.ExtractID(resolvedURL)
	}

	name = strings.TrimSpace(unsafeFilenameChars.Replace(name))
	if name == "" || name == "." || name == ".." {
		name = index
	}
	return name + mediaExtension
}

// Path joins the base name for req onto dir
func (n *Namer) Path(dir string, req domain.MediaRequest, resolvedURL string) string {
	return filepath.Join(dir, n.BaseName(req, resolvedURL))
}
