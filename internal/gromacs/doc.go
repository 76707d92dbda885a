// Package gromacs invokes the simulation engine as an external batch tool and
// renders the parameter files each pipeline stage feeds to it.
package gromacs
