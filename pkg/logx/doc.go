// Package logx is a thin structured-logging layer over zerolog.
//
// Components receive a Logger by injection; there is no package-level default.
// The Service variant supports swapping sinks and levels at runtime when the
// application config is reloaded.
package logx
