// Package config loads, validates and watches the adnotify configuration.
//
// Configuration is YAML. Values may reference the environment with ${VAR}
// or ${VAR:-default}, which keeps credentials out of the file:
//
//	directory:
//	  address: dc01.test.local:389
//	  bindDN: CN=svc-dns,CN=Users,DC=test,DC=local
//	  password: ${ADNOTIFY_PASSWORD}
//	watch:
//	  target: DC=srv5,DC=test.local,CN=MicrosoftDNS,DC=DomainDnsZones,DC=test,DC=local
//	  attributes: [dnsRecord]
//	  scope: base
//	logging:
//	  level: info
//	  format: text
//	metrics:
//	  address: 127.0.0.1:9102
//
// Missing keys keep the values from DefaultConfig. Command line flags are
// applied on top of the loaded file by the caller.
//
// A ConfigWatcher reloads the file when it changes and hands the old and
// new configuration to a callback. Only settings that are safe to change
// at runtime, such as the log level, are applied by the watch command.
package config
