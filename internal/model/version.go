package model

// Version is the devlens release, overridden at build time via -ldflags.
var Version = "0.4.0"
