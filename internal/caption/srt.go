package caption

import (
	"fmt"
	"strings"

	"dublab/internal/models"
)

// RenderSRT renders a caption set in SubRip format.
func RenderSRT(set models.CaptionSet) string {
	var b strings.Builder
	for i, seg := range set.Segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			srtTimestamp(seg.StartSeconds),
			srtTimestamp(seg.EndSeconds),
			seg.Text,
		)
	}
	return b.String()
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(seconds*1000 + 0.5)
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
