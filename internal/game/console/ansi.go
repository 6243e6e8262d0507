package console

import "fmt"

// ANSI escape codes used by the renderer.
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"

	BrightRed    = "\033[91m"
	BrightYellow = "\033[93m"
	BrightWhite  = "\033[97m"
)

// palette applies colors only when enabled, so output piped to a file or
// compared in tests stays plain.
type palette bool

func (p palette) paint(color, text string) string {
	if !p {
		return text
	}
	return color + text + Reset
}

func (p palette) paintf(color, format string, args ...any) string {
	return p.paint(color, fmt.Sprintf(format, args...))
}
