// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

/*
Package supervisor runs the long-lived services of the server under suture v4.

	RootSupervisor ("geointegrity")
	├── EventsSupervisor ("events-layer")
	│   ├── EmbeddedServer (if events.embedded_server)
	│   ├── Publisher
	│   └── Notifier (if webhook.url)
	└── APISupervisor ("api-layer")
	    ├── Hub
	    └── HTTPServerService

A failing publisher or webhook restarts inside the events layer without
touching the HTTP server. Supervisor events are logged through sutureslog
onto the zerolog logger:

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddEventsService(publisher)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
