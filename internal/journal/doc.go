// Package journal persists reconciliation run history in SQLite so
// operators can review what earlier runs decided for each image.
package journal
