package config

import (
	"os"
	"sync"
)

const dockerHostAlias = "host.docker.internal"

var (
	inDockerOnce sync.Once
	inDocker     bool
)

// IsRunningInDocker reports whether /.dockerenv exists. Cached after the first call.
func IsRunningInDocker() bool {
	inDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inDocker = err == nil
	})
	return inDocker
}

// ResolveDockerHosts rewrites loopback database and Redis hosts to the
// Docker host alias when running inside a container.
func (c *Config) ResolveDockerHosts() {
	dockerized := IsRunningInDocker()
	c.Database.Host = resolveHost(dockerized, c.Database.Host)
	c.Redis.Host = resolveHost(dockerized, c.Redis.Host)
}

func resolveHost(dockerized bool, host string) string {
	if dockerized && (host == "localhost" || host == "127.0.0.1") {
		return dockerHostAlias
	}
	return host
}
