// Package danmaku decodes the remote comment-overlay stream and renders it
// into an ASS subtitle-style overlay file per spec.md §4.4 step 4. Rendering
// is the one CPU-heavy step spec.md §5 permits to run on a blocking worker
// pool instead of inline.
package danmaku

// Option mirrors spec.md §6 danmaku_option: rendering parameters for the
// overlay.
type Option struct {
	Font       string
	FontSize   int
	ScrollRatio float64 // playback-speed multiplier for scrolling comments
	FixedRatio  float64 // not read by the renderer: top/bottom comments stay on screen as long as scrolling ones

	LaneHeight int

	// FloatingCap/BottomCap bound what fraction of the video's vertical
	// extent scrolling/fixed comments may occupy, [0,1].
	FloatingCap float64
	BottomCap   float64

	Opacity float64 // [0,1]
	Outline float64 // outline width in pixels
	Bold    bool

	// TimeOffset shifts every comment's timestamp by this many seconds,
	// positive or negative, applied uniformly.
	TimeOffset float64
}

// DefaultOption matches the remote player's own defaults.
func DefaultOption() Option {
	return Option{
		Font:        "sans-serif",
		FontSize:    38,
		ScrollRatio: 1.0,
		FixedRatio:  1.0,
		LaneHeight:  40,
		FloatingCap: 1.0,
		BottomCap:   1.0,
		Opacity:     1.0,
		Outline:     1.0,
	}
}
