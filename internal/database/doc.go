// Package database provides SQLite-backed storage for scans, pages,
// issues, and component groups.
//
// The store is the single source of truth for pipeline state: each
// phase reads its input and writes its output here, and progress
// observers read the same rows. Issue writes are transactional per
// batch so readers never observe a half-written batch. All point
// queries are served by indexes on scan id and page id; nothing in the
// hot path scans full tables.
package database
