package registry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/bnema/stevedore/pkg/logger"
)

const connectTimeout = 5 * time.Second

// DockerRegistry lists running containers through the Docker Engine API.
type DockerRegistry struct {
	cli *client.Client
}

// NewDockerRegistry connects to the engine socket and verifies it answers a
// list call before returning. An unreachable daemon at startup is fatal for
// the caller; later outages are per-tick transient errors.
func NewDockerRegistry(sock string) (*DockerRegistry, error) {
	if sock == "" {
		return nil, fmt.Errorf("docker socket path is empty")
	}
	if _, err := os.Stat(sock); os.IsNotExist(err) {
		return nil, fmt.Errorf("docker socket does not exist: %s", sock)
	}

	cli, err := client.NewClientWithOpts(
		client.WithAPIVersionNegotiation(),
		client.WithHost("unix://"+sock),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing Docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if _, err := cli.ContainerList(ctx, container.ListOptions{}); err != nil {
		return nil, fmt.Errorf("cannot connect to Docker daemon: %w", err)
	}

	logger.Debug("Docker client initialized", "socket", sock)
	return &DockerRegistry{cli: cli}, nil
}

// ListTargets returns every running container with its labels.
func (r *DockerRegistry) ListTargets(ctx context.Context) ([]Target, error) {
	containers, err := r.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	targets := make([]Target, 0, len(containers))
	for _, c := range containers {
		targets = append(targets, Target{
			ID:     c.ID,
			Name:   containerName(c),
			Labels: c.Labels,
		})
	}
	return targets, nil
}

// containerName strips the engine's leading slash from the primary name.
func containerName(c types.Container) string {
	for _, name := range c.Names {
		if trimmed := strings.TrimPrefix(name, "/"); trimmed != "" {
			return trimmed
		}
	}
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}
