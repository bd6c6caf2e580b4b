package main

import "sync"

// Application is a backend the load balancer forwards to.
type Application struct {
	Alive bool
	IP    string
	Port  string
	TLS   bool
}

// URL returns the base URL of the application.
func (a *Application) URL() string {
	var proto string
	if a.TLS {
		proto = "https://"
	} else {
		proto = "http://"
	}
	if a.Port == "" || a.Port == "0" {
		return proto + a.IP
	}
	return proto + a.IP + ":" + a.Port
}

// Pool hands out applications in round-robin order.
type Pool struct {
	mu           sync.Mutex
	applications []Application
	index        int
}

// NewPool returns a pool over apps. apps must not be empty.
func NewPool(apps []Application) *Pool {
	return &Pool{applications: apps}
}

// Next returns the next application. Applications marked dead are skipped
// unless every application is dead.
func (p *Pool) Next() Application {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.applications)
	for i := 0; i < n; i++ {
		app := p.applications[p.index%n]
		p.index++
		if app.Alive {
			return app
		}
	}

	app := p.applications[p.index%n]
	p.index++
	return app
}
