// Package round drives the observation/intervention alternation of an
// experiment.
//
// The state of an experiment is never stored. It is derived from which
// messages exist in the mailbox:
//
//	START                      no observation yet
//	AWAITING_INTERVENTION(n)   observation n present, intervention n absent
//	AWAITING_OBSERVATION(n)    observation n and intervention n present
//
// where n is the highest observation iteration. Each step is invoked with an
// explicit experiment index and iteration; the [Controller] only checks that
// the predecessor message exists and is well formed before writing the
// successor. Choosing the right iteration is the caller's job, and
// [Controller.Inspect] reports what the next step should be.
package round
