// Package elevator hosts iosched dispatch schedulers for a set of named devices.
//
// An Elevator owns one DispatchScheduler and serializes every call into it. It adds the
// pieces a host block layer normally provides around the core: request IDs, back merging
// of contiguous requests, draining before teardown and a wake signal for consumers.
//
// A Driver pulls requests out of an Elevator and submits them to a Transport, pacing
// submissions with a rate limiter and backing off while the device is idle.
//
// A Registry tracks attached devices by name and refuses to detach a device that still
// has queued requests.
package elevator
