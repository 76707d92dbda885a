// Package services holds the shared error taxonomy and context plumbing used
// by the pipeline stages and their external-tool clients.
package services
