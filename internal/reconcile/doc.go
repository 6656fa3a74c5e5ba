// Package reconcile owns the lifecycle of upstream generation tasks.
//
// Two independent channels report progress for a task: webhook callbacks
// pushed by the music service and polls issued by this process. Both feed
// the same transition function, Reconciler.Apply, which treats completed
// and failed as final. A terminal task is never modified again, no matter
// how many duplicate or late reports arrive.
package reconcile
