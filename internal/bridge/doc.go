// Package bridge connects a propulsion model to a simulated rigid body.
//
// A Bridge is loaded against a world and a link. On every world step it
// decides whether the control timer fires, drains motor commands that are
// valid at the current simulation time, advances the model by the elapsed
// time and applies the resulting wrench to the link, publishing the trigger,
// wrench, motor status and supply on the transport as configured.
//
// All state belongs to one Bridge; any number of bridges may share a
// process and a transport bus.
package bridge
