package ir

// ToolVersion is the scriptdelta release version.
const ToolVersion = "0.1.0"
