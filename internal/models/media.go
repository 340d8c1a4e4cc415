package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/studio/internal/shared"
)

// MediaType is the media kind being generated or viewed.
type MediaType string

const (
	Image MediaType = "image"
	Audio MediaType = "audio"
	Video MediaType = "video"
)

// MediaTypes lists every mode in navigation order.
var MediaTypes = []MediaType{Image, Audio, Video}

var modelsByType = map[MediaType][]string{
	Image: {"广科院", "海螺", "即梦", "可灵"},
	Audio: {"广科院", "cosyvoice"},
	Video: {"广科院", "海螺", "即梦", "可灵"},
}

// ParseMediaType validates s as a media type.
func ParseMediaType(s string) (MediaType, error) {
	t := MediaType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", shared.ErrInvalidMediaType, s)
	}
	return t, nil
}

func (t MediaType) Valid() bool {
	switch t {
	case Image, Audio, Video:
		return true
	}
	return false
}

// Models returns the generation models offered for this mode; the first is the default.
func (t MediaType) Models() []string {
	return append([]string(nil), modelsByType[t]...)
}

// DefaultModel returns the first model for the mode.
func (t MediaType) DefaultModel() string {
	if m := modelsByType[t]; len(m) > 0 {
		return m[0]
	}
	return ""
}

// SupportsModel reports whether model is in the mode's fixed list.
func (t MediaType) SupportsModel(model string) bool {
	for _, m := range modelsByType[t] {
		if m == model {
			return true
		}
	}
	return false
}

// UsesVoice is true for audio; image and video take a style instead.
func (t MediaType) UsesVoice() bool { return t == Audio }

// Label is the badge text shown in the library (图像/音频/视频).
func (t MediaType) Label() string {
	switch t {
	case Image:
		return "图像"
	case Audio:
		return "音频"
	case Video:
		return "视频"
	}
	return string(t)
}

// Noun is the word used in progress text (图片/音频/视频).
func (t MediaType) Noun() string {
	if t == Image {
		return "图片"
	}
	return t.Label()
}

// Filter restricts the library to one media type, or to none when it is [FilterAll].
type Filter string

const FilterAll Filter = "all"

// Filters lists the filter pills in display order.
var Filters = []Filter{FilterAll, Filter(Image), Filter(Audio), Filter(Video)}

// ParseFilter accepts "all" (or empty) and the media types.
func ParseFilter(s string) (Filter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == string(FilterAll) {
		return FilterAll, nil
	}
	t, err := ParseMediaType(s)
	if err != nil {
		return "", err
	}
	return Filter(t), nil
}

// MediaType returns the type to send as media_type, and false for [FilterAll].
func (f Filter) MediaType() (MediaType, bool) {
	if f == FilterAll || f == "" {
		return "", false
	}
	return MediaType(f), true
}

// Matches reports whether a record of type t is visible under the filter.
func (f Filter) Matches(t MediaType) bool {
	mt, ok := f.MediaType()
	return !ok || mt == t
}

// Label is the pill text for the filter.
func (f Filter) Label() string {
	if mt, ok := f.MediaType(); ok {
		return mt.Label()
	}
	return "全部"
}
