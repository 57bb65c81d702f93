package main

// serviceVersion is reported by the version command (the /healthz
// endpoints report handlers.ServiceVersion); bumped by hand since this repo
// doesn't wire a build-time ldflags injection step.
const serviceVersion = "1.0.0"
