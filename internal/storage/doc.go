// Package storage is the durable substrate for reminders and the feed
// subscription slot, backed by SQLite.
//
// The store is the single authoritative copy of every scheduled reminder;
// callers get value snapshots, never live references.
package storage
