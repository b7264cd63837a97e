package log

import "github.com/fatih/color"

var levelColors = map[LogLevel]*color.Color{
	Debug: color.New(color.FgBlue),
	Info:  color.New(color.FgGreen),
	Warn:  color.New(color.FgYellow),
	Error: color.New(color.FgRed),
	Fatal: color.New(color.FgMagenta, color.Bold),
}

// Colorize wraps line in the terminal color of the level.
func Colorize(l LogLevel, line string) string {
	c, ok := levelColors[l]
	if !ok {
		return line
	}
	// Color output is decided per logger, not by the global NoColor detection.
	c.EnableColor()
	return c.Sprint(line)
}
