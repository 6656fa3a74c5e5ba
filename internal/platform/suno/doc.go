// Package suno is the music-generation collaborator. It submits generation
// jobs, reads job status, and normalises webhook payloads and poll
// responses into domain.TaskUpdate values.
package suno
