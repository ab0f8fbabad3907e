package docker

import (
	"context"
	"errors"
	"time"

	"github.com/docker/docker/client"
)

var ErrDockerUnavailable = errors.New("docker unavailable")

// Client wraps the Docker API for container-kind monitors. Only state
// inspection is exposed: the engine observes containers, it never
// starts, stops or restarts them.
type Client struct {
	cli *client.Client
}

// NewClient connects to the local Docker daemon. A missing daemon is not
// fatal; callers get ErrDockerUnavailable and container monitors probe
// as down until the daemon appears.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, ErrDockerUnavailable
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		return &Client{cli: cli}, ErrDockerUnavailable
	}

	return &Client{cli: cli}, nil
}

// ContainerState returns the inspected state string ("running",
// "exited", ...) for a container.
func (c *Client) ContainerState(ctx context.Context, id string) (string, error) {
	if c == nil || c.cli == nil {
		return "", ErrDockerUnavailable
	}
	ins, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return "", err
	}
	if ins.State == nil {
		return "", nil
	}
	return ins.State.Status, nil
}

// Available reports whether the daemon answers pings.
func (c *Client) Available(ctx context.Context) bool {
	if c == nil || c.cli == nil {
		return false
	}
	_, err := c.cli.Ping(ctx)
	return err == nil
}
