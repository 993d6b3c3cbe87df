// Package analysis inspects recorded frames after a run.
//
//   - [PowerSpectrum], [Welch]: frequency content of a sampled series
//   - [DominantFrequency]: strongest non-DC line of a spectrum
//   - [NewPhasePortrait]: x against v for one coordinate, drawn on a braille canvas
//   - [NewPoincareSection]: states sampled where a coordinate crosses a level
//
// Series are pulled out of frames with [Series].
//
//	xs, _ := analysis.Series(result.Frames, "x", 1)
//	ps, _ := analysis.PowerSpectrum(xs, dt)
//	f := ps.DominantFrequency()
package analysis
