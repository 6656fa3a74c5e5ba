// Package orchestrator turns a repository's commit history into a song.
//
// Service.Generate runs the pipeline: resolve the repository and commit
// window, list and read commits, summarise them, index them for retrieval,
// write lyrics and a title with the language model, and submit the music
// job. Every external call goes through the call cache, so repeating a
// request re-uses earlier results. A failure is reported as a StageError
// naming the step that failed.
package orchestrator
