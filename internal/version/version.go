package version

// Version of the warpmeet binaries, stamped at release time with
//
//	-ldflags="-X 'github.com/BioHazard786/Warpmeet/internal/version.Version=v1.0.0'"
var Version = "dev"
