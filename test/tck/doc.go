// Package tck holds compliance tests for the confkit configuration contract.
package tck
