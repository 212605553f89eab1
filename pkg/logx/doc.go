// Package logx is a thin structured-logging layer over zerolog.
//
// Components hold Logger values (cheap, copyable); the Service owns the
// sinks and can re-apply configuration at runtime without components
// noticing. The zero Logger is a safe no-op.
package logx
