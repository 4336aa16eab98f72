// Package mailbox stores the messages exchanged between the observation and
// intervention sides of an experiment.
//
// Every message lives at an [Address]: a channel, an experiment identifier
// and an iteration. On the default file backend an address is one JSON file:
//
//	virtual_dropbox/
//	    observations/{ID}_{iteration}.json
//	    interventions/{ID}_{iteration}.json
//
// # Main Types
//
//   - [Mailbox]: validating facade used by the round controller
//   - [Store]: raw byte storage keyed by address
//   - [FileStore]: local directory store with atomic create
//   - [AFSStore]: store over any viant/afs URL (file://, mem://, ...)
//   - [MemoryStore]: process-local store for tests
//   - [Message]: the required ID plus opaque payload fields
//
// # Writes
//
// Writes never replace an address. A store writes the encoded message to a
// temp file and links it into place, so a reader either sees the complete
// message or no file. Writing identical content to an occupied address is
// accepted as a resend and reported as iteration drift; different content is
// an [errors.AddressConflictError].
//
// # Reads
//
// [Mailbox.Get] distinguishes a missing message, a malformed one, and one
// whose ID field names a different experiment than its address. The last is
// a wiring fault and is never reconciled.
package mailbox
