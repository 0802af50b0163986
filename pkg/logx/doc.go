// Package logx is the daemon's structured logging layer, a thin wrapper
// around zerolog. Logger carries a service name and typed fields; Service
// owns the sinks (console, optional JSON file) and can swap level and
// writers at runtime through Apply.
package logx
