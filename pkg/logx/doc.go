// Package logx is a thin structured-logging layer over zerolog.
//
// Components receive a Logger by value; the zero value is a safe no-op.
// Fields are closures applied to the underlying zerolog event so call
// sites stay allocation-light when the level is disabled.
package logx
