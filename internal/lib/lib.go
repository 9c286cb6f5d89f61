// Package lib groups supporting libraries that do not belong to a single
// layer: background jobs on Redis/asynq (lib/job) and bearer token
// signing (lib/token).
package lib
