// Package toolbox connects the assistant to the admin backend's tool
// channel over MCP: it discovers the callable administrative actions,
// validates them against the fixed manifest, rewrites their parameter
// schemas for strict-mode function calling, and executes calls on the
// model's behalf.
//
// The channel being unreachable is not fatal. The app layer treats a
// failed connect as "zero tools available" and the assistant answers from
// documentation alone.
package toolbox
