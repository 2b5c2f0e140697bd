/*
Package ddns keeps DNS records pointed at the machine's current public IPv4 address.

Usage will always start with [ddns.New],
which returns the DDNSClient implementation.
New requires the domain name whose records will be updated and a [Provider] implementation for a DNS provider.
Additional client configuration options are listed in the docs for New.

A client performs one update cycle per call to Run:
it discovers the current public IPv4 address,
compares it against the last address an update round was attempted for,
and when the address changed it updates every configured host record,
isolating failures so one bad host never blocks the others.
[RunDaemon] repeats cycles on a fixed interval.
*/
package ddns
