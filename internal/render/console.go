// Package render holds renderer collaborators. The core hands them a
// finished view model and places no constraint on how it is drawn.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-kratos/kratos/v2/log"

	"InstantMBTA/internal/model"
)

// Console writes view models as plain text, one block per publish. It is
// the renderer used off-device; the e-ink driver implements the same
// interface on the hardware build.
type Console struct {
	w      io.Writer
	logger *log.Helper
}

// NewConsole creates a console renderer writing to w.
func NewConsole(w io.Writer, logger log.Logger) *Console {
	return &Console{
		w:      w,
		logger: log.NewHelper(logger),
	}
}

// Render implements biz.Renderer.
func (c *Console) Render(vm *model.ViewModel) error {
	var b strings.Builder

	if vm.Title != "" {
		b.WriteString(vm.Title)
		b.WriteByte('\n')
	}
	b.WriteString(vm.GeneratedAt.Format("01/02/06 3:04 PM"))
	b.WriteByte('\n')

	for _, group := range vm.Groups {
		b.WriteByte('\n')
		if group.Title != "" {
			b.WriteString(group.Title)
			b.WriteByte('\n')
		}
		if len(group.Rows) == 0 {
			b.WriteString("  --\n")
			continue
		}
		for _, row := range group.Rows {
			switch {
			case row.Indent:
				fmt.Fprintf(&b, "        %s\n", row.Time)
			case row.Label != "":
				fmt.Fprintf(&b, "  %s: %s\n", row.Label, row.Time)
			default:
				fmt.Fprintf(&b, "  %s\n", row.Time)
			}
		}
	}

	if _, err := fmt.Fprint(c.w, b.String()); err != nil {
		return fmt.Errorf("failed to write display output: %w", err)
	}
	c.logger.Debugw("view model rendered", "groups", len(vm.Groups))
	return nil
}
