// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package services provides suture.Service wrappers for components whose
lifecycle is not already Serve(ctx) shaped.

  - HTTPServerService: ListenAndServe plus graceful Shutdown
  - HubService: names the hub's RunWithContext loop
  - ClosingService: closes a resource once its service stops for good

Components that already implement Serve and String (ingest.NATSBridge,
ingest.EmbeddedServer, feed.Supervisor) are added to the tree directly.
*/
package services
