package stagehand

// Version is the release version, set at build time with
// -ldflags "-X github.com/aretw0/stagehand.Version=...".
var Version = "dev"
