// Package api exposes the song pipeline over HTTP. Handlers translate
// requests into orchestrator and reconciler calls and map their errors to
// status codes without leaking internal detail.
//
// Routes:
//
//	POST /api/songs                 start a song, 202 once the music job is submitted
//	GET  /api/songs/{id}            song record
//	GET  /api/tasks/{id}            generation task with stored artifacts
//	POST /api/tasks/{id}/poll       query the music service once
//	POST /api/callbacks/music       signed webhook from the music service
//	GET  /api/rate-limits/{service} live-call accounting
//	GET  /health                    liveness
package api
