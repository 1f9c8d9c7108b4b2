package application

import "expvar"

// stats is published on /debug/vars.
var stats = expvar.NewMap("bookmanager_operations")

func count(name string) { stats.Add(name, 1) }
