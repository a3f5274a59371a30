// Package script embeds a Lua interpreter that drives an event space.
//
// Scripts see a global table named "space":
//
//	local id = space.on("app.window", function(data, msg)
//	    print(msg.level, data.title)
//	end)
//	space.send("app.window", {title = "main"})
//	space.off("app.window", id)
//
// Paths are dotted strings or arrays of segment strings. Listener handles are
// returned to Lua as opaque ID strings.
//
// A Runtime owns one Lua state, which is not goroutine-safe. Deferred sends
// are queued and only run when the owner calls Drain, so every Lua callback
// executes on the goroutine that owns the Runtime.
package script
