//go:build linux

package main

import "golang.org/x/sys/unix"

// setRawMode switches the terminal to raw input so single key presses reach
// the feed. The returned func restores the previous settings.
func setRawMode(fileDescriptor uintptr) (func(), error) {
	terminalSettings, err := unix.IoctlGetTermios(int(fileDescriptor), unix.TCGETS)
	if err != nil {
		return nil, err
	}
	savedTerminalSettings := *terminalSettings
	terminalSettings.Iflag &^= unix.BRKINT | unix.ICRNL | unix.INPCK | unix.ISTRIP | unix.IXON
	terminalSettings.Oflag &^= unix.OPOST
	terminalSettings.Lflag &^= unix.ECHO | unix.ICANON | unix.IEXTEN | unix.ISIG
	terminalSettings.Cflag &^= unix.CSIZE | unix.PARENB
	terminalSettings.Cflag |= unix.CS8
	terminalSettings.Oflag |= unix.ONLCR

	if err := unix.IoctlSetTermios(int(fileDescriptor), unix.TCSETS, terminalSettings); err != nil {
		return nil, err
	}
	return func() {
		_ = unix.IoctlSetTermios(int(fileDescriptor), unix.TCSETS, &savedTerminalSettings)
	}, nil
}
