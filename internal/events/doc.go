// Package events provides an in-process publish/subscribe mechanism.
//
// The task reconciler emits an event whenever a generation task reaches a
// terminal state; the song service subscribes to update the song record.
// Emitters never know which handlers are registered.
package events
