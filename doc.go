/*
Package dnspin keeps a DNS provider's A record pointed at this machine's
current public IPv4 address.

Usage will always start with [dnspin.NewTarget] and [dnspin.New],
which return the Controller.
New requires a validated Target and a directory implementation for a DNS
provider - use [UsingCloudflare] or similar.
Additional configuration options are listed in the docs for New.

The Controller performs one reconciliation pass per call to Run:
it resolves the provider's view of the record, discovers the machine's
public address from independent web services, updates the record when the
two disagree, and then polls public DNS until the change is visible.
It is designed to be invoked periodically by an external scheduler such as
cron, with an advisory lock preventing overlapping runs.
*/
package dnspin
