// Package logging provides structured logging for adnotify.
//
// The Logger interface is small enough to fake in tests and is backed by
// hashicorp/go-hclog. Output is text or JSON:
//
//	logger := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Name:   "adnotify",
//	})
//	logger.Info("registered watch", "target", dn, "handle", h)
//
// Loggers derived with WithFields, WithRequestID or Named share the level of
// their parent, so a configuration reload can call SetLevel on the root
// logger and every component follows:
//
//	root.SetLevel(logging.ParseLevel(cfg.Logging.Level))
//
// For tests, use NewNop.
package logging
