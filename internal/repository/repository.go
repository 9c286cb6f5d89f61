// Package repository runs the SQL for users and posts on a pgx pool or
// transaction. Soft-deleted posts stay in the table until the purge job
// removes them.
package repository
