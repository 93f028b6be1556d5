// Package parser turns a build tool's preview-patch log into a [BuildManifest].
//
// The log is line oriented but heterogeneous: per-entry summaries (FILE,
// CHUNK and PACK lines), TOP_OFFENDER listings, and aggregate counters such
// as PREDICTED_UPDATE_BYTES. Every line is run through a single classifier;
// the parse [Mode] then decides what happens to lines the classifier cannot
// use. [ModeBestEffort] records a warning and moves on, [ModeStrict] stops
// at the first bad line with a [*ParseError] carrying its line number.
//
// The parser performs no I/O beyond reading the supplied text.
package parser
