// Package analysis runs the post-production convergence and plotting scripts
// and reads the numeric tables the bias engine writes.
package analysis
