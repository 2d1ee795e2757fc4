// Package logx configures syncexec's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Repeated warnings cheap (Throttled rate-limits a hot log site)
package logx
