// Package buildmeta resolves the build identity recorded in reports:
// commit sha, branch and CI build id.
package buildmeta
