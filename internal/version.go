package internal

// Set via -ldflags "-X github.com/Eyevinn/mosh264/internal.version=..."
var version = "dev"

func GetVersion() string {
	return version
}
