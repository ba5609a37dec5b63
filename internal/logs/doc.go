// Package logs reads the daily dramamerge log files.
//
// Last returns the final lines of a file with bounded memory, optionally
// filtered to one job, and Follow polls for lines appended afterwards until
// its context ends. Both back the `dramamerge logs` command.
package logs
