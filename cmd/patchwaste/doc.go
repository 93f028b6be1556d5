// Patchwaste is a CI-friendly CLI that measures wasted bytes in a game's
// preview patch.
//
// It parses the build tool's preview-patch log, reports delta efficiency and
// waste ratio, explains the likely causes as findings, and gates the build on
// a new-bytes budget relative to a baseline report.
//
// Usage:
//
//	patchwaste analyze --input preview.log                  # analyze one log
//	patchwaste analyze --input BuildOutput/ --format all    # analyze a build output directory
//	patchwaste analyze --input preview.log --baseline base/report.json --budget-ratio 1.2
//	patchwaste rules                                        # list finding rules
//	patchwaste config init                                  # write ./patchwaste.yaml
package main
