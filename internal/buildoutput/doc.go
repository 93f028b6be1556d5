// Package buildoutput discovers preview logs in a BuildOutput directory and
// loads them into manifests, overall and per depot.
package buildoutput
