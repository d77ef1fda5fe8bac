// Package viz draws a running flight in the terminal.
//
// A [Feed] is attached to an experiment as an observer and hands decimated
// samples to a Bubble Tea [Monitor], which shows a side view of the airframe,
// altitude/thrust/voltage graphs and per-motor state.
//
// # Key Bindings
//
//	Space - Freeze/unfreeze the display (the flight keeps running)
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Stop the flight and quit
package viz
