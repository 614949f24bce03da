package ygggo_mysqlrw

// Version returns the current library version.
func Version() string { return "v0.1.0-dev" }
