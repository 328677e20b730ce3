package slide

// version is the library release identifier.
const version = "0.1.0"

// Version returns the library version string.
func Version() string {
	return version
}
