package style

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	Reset  = 0
	Bold   = 1
	Red    = 31
	Green  = 32
	Yellow = 33
)

// SupportsColor reports whether f is a terminal and https://no-color.org/ is not requested.
func SupportsColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func seq(ms []int) string {
	if len(ms) == 0 {
		return "\033[0m"
	}
	var b strings.Builder
	_, _ = b.WriteString("\033[")
	for i, m := range ms {
		if i != 0 {
			_ = b.WriteByte(';')
		}
		_, _ = b.WriteString(strconv.FormatInt(int64(m), 10))
	}
	_ = b.WriteByte('m')
	return b.String()
}

// Writer emits escape sequences only if the underlying output supports color.
type Writer struct {
	io.Writer
	Color bool
}

func NewWriter(f *os.File) *Writer {
	return &Writer{Writer: f, Color: SupportsColor(f)}
}

func (w *Writer) S(ms ...int) string {
	if w.Color {
		return seq(ms)
	}
	return ""
}

func (w *Writer) With(s string, ms ...int) string {
	if !w.Color {
		return s
	}
	return seq(ms) + s + seq(nil)
}
