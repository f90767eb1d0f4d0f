// Package cli implements osioctl, a command line client for the iosched admin endpoints
// of an osiosched server.
package cli
