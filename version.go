package ruledbg

// Version is the library/CLI release version.
const Version = "0.1.0"
