// Package script provides the variable store shared by the markup
// interpreter and user scripts.
//
// Variables live in the global Lua table "mxp" of a sandboxed gopher-lua
// state, so an init script can read mxp.HP directly. Scripts may define
// on_variables_changed(names) to react to updates from the peer, and call
// send(command) to issue commands.
package script
