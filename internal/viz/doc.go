// Package viz draws a running simulation in the terminal.
//
// [Model] is a Bubble Tea program that steps a sim.Simulator on a timer
// and plots every mechanical state on a braille [Canvas]: independent
// states as blobs, mapped states as single dots. The first two
// coordinates of each point are drawn.
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	S     - Single step while paused
//	[ ]   - Time travel (rewind/forward)
//	T     - Cycle color themes
//	?     - Show help
//	Q     - Quit
package viz
