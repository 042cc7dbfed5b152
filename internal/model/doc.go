// Package model defines the core data types shared across the scan
// pipeline: scans, pages, issues, component groups, and the summary
// derived from them.
//
// The types in this package are persistence-agnostic. The database
// package maps them to SQLite rows and the report package renders them,
// but neither adds semantics beyond what is defined here.
package model
