package version

// Version はビルド時に -ldflags "-X fastscribe/internal/version.Version=..." で上書きできる
var Version = "0.1.0"
