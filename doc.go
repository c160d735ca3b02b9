/*
Package dynip keeps a dynamic IP network on the provider's DNS service pointed at this host.

Usage starts with [New], which takes the [Account] holding the sign-in token and the selected network,
and returns an [Engine].
The Engine resolves the public IP on every tick, sends an IP update when the address changes
or every [IPUpdateInterval], and checks for new software versions every [SoftwareCheckInterval].
Additional configuration options are listed in the docs for New.

Network selection is done separately with [RefreshNetworks],
whose [Selection] decides whether the Account may send updates at all.
*/
package dynip
