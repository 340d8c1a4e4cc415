package tasks

import (
	"fmt"

	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/shared"
)

// BrowserPreviewer hands a record's asset to the desktop: images open in the viewer,
// audio and video in the default player.
type BrowserPreviewer struct {
	Resolve func(path string) string // typically [services.StudioService.ResolveURL]
	Open    func(url string) error   // default: [shared.OpenBrowser]
}

var _ Previewer = BrowserPreviewer{}

func (p BrowserPreviewer) Preview(rec models.MediaRecord) error {
	if rec.Path == "" {
		return fmt.Errorf("%w: record %d has no asset path", shared.ErrInvalidInput, rec.ID)
	}

	target := rec.Path
	if p.Resolve != nil {
		target = p.Resolve(rec.Path)
	}

	open := p.Open
	if open == nil {
		open = shared.OpenBrowser
	}
	return open(target)
}
