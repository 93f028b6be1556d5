// Package metrics reduces a parsed build manifest to aggregate byte
// counts, delta efficiency and waste ratio, together with a confidence
// level for each counter.
package metrics
