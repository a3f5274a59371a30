// Package path normalizes level addresses for the event space.
//
// A path is either an explicit ordered sequence of segments or a single
// string using "." as the sole delimiter:
//
//	"app.window.resized"              -> ["app" "window" "resized"]
//	[]string{"app", "window.resized"} -> ["app" "window.resized"]
//	""                                -> [] (the root)
//
// There is no escaping, so a segment containing "." can only be addressed
// with the sequence form.
package path
