//go:build windows

package output

import (
	"golang.org/x/sys/windows"
)

// enableANSI turns on virtual terminal processing for the console behind fd
// so colored diagnostics render on Windows 10+
func enableANSI(fd uintptr) bool {
	handle := windows.Handle(fd)

	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err != nil {
		return false
	}
	return windows.SetConsoleMode(handle, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING) == nil
}
