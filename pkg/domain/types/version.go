package types

// Version is the annodb release version. Overridden at build time with
// -ldflags "-X github.com/m-mizutani/annodb/pkg/domain/types.Version=...".
var Version = "v0.1.0"

// ServiceName is reported by the health endpoint and used as the CLI name.
const ServiceName = "annodb"
