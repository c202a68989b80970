// Package zoneinput implements the pluggable zone-content fetcher: a
// Fetcher capability interface plus a Registry from input_type name to
// FactoryFunc, the same shape as the teacher's health.Checker interface
// with its HTTPChecker/TCPChecker/ExecChecker variants. This build ships
// one concrete variant, lim_plugin_dns, registered the way a second
// checker type would be added in the teacher package.
package zoneinput
