package ir

// EngineVersion is the offsync version.
const EngineVersion = "0.1.0"
