// Package meta resolves the current list of config-service endpoints from
// the meta server and keeps it fresh in the background.
//
// Consumers never pin an endpoint: they shuffle the returned list on every
// use, optionally promoting a one-shot preferred endpoint (the instance that
// answered the last long poll) to the head.
package meta
