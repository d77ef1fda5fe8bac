// Package analysis post-processes stored telemetry.
//
//   - [PowerSpectrum] and [Dominant]: oscillation content of a series, e.g.
//     altitude hunting caused by command delay
//   - [Latency]: how long commands took from trigger to application
package analysis
