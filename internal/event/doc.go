// Package event provides a synchronous pub-sub bus that decouples the round
// controller and mailbox from the components that observe them (logging of
// drift, metrics).
//
// # Main Types
//
//   - [Event]: interface every event implements (EventType, Timestamp)
//   - [Bus]: thread-safe synchronous dispatcher
//   - [Handler]: func(Event)
//
// # Events
//
//   - [ExperimentCreatedEvent] ("experiment.created"): a new experiment was
//     registered and its first observation written
//   - [IDCollisionEvent] ("experiment.collision"): a generated identifier
//     was already taken and a replacement is being tried
//   - [MessageWrittenEvent] ("message.written"): a message was stored at an
//     address
//   - [MessageDriftEvent] ("message.drift"): an identical message was resent
//     to an address that already held it
//   - [RoundFailedEvent] ("round.failed"): a round step failed
//
// # Usage
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypeMessageWritten, func(e event.Event) {
//	    w := e.(event.MessageWrittenEvent)
//	    fmt.Println(w.Channel, w.FileName)
//	})
//	bus.Publish(event.NewMessageWrittenEvent("observations", id, 0, name, false))
//
// Handlers run on the publisher's goroutine. A panicking handler is recovered
// and reported; delivery to the remaining handlers continues.
package event
