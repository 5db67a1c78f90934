// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs the conversion service as a local container with
// Docker or Podman.
package container

import (
	"os/exec"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// Service describes a long-running container published on a host port.
type Service struct {
	// Name is the container name, used to find it again.
	Name  string
	Image string

	// HostPort is published to ContainerPort.
	HostPort      int
	ContainerPort int
}

// Runtime provides container operations: checking availability, verifying
// images, and managing named service containers.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available() bool

	// ImageExists checks whether the named image exists locally.
	// Returns nil when the image is found, or an error describing the failure.
	ImageExists(image string) error

	// Running reports whether a container with the given name is running.
	Running(name string) bool

	// Start runs svc detached and returns the container id. The container
	// is removed when it stops.
	Start(svc Service) (string, error)

	// Stop stops the named container.
	Stop(name string) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	Output(name string, args ...string) (string, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (o *osExecutor) Output(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	return strings.TrimSpace(string(out)), err
}

// runtime implements Runtime for a specific container binary. Both Docker
// and Podman share the same logic; they differ only in binary name and the
// subcommand used to check image existence.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *runtime) ImageExists(image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(r.bin, args...); err != nil {
		return eris.Wrapf(err, "image %s not found in %s", image, r.bin)
	}
	return nil
}

func (r *runtime) Running(name string) bool {
	out, err := r.exec.Output(r.bin, "inspect", "-f", "{{.State.Running}}", name)
	return err == nil && out == "true"
}

func (r *runtime) Start(svc Service) (string, error) {
	if svc.Name == "" || svc.Image == "" {
		return "", eris.New("container: service needs a name and an image")
	}
	args := []string{"run", "-d", "--rm", "--name", svc.Name}
	if svc.HostPort > 0 && svc.ContainerPort > 0 {
		args = append(args, "-p", strconv.Itoa(svc.HostPort)+":"+strconv.Itoa(svc.ContainerPort))
	}
	args = append(args, svc.Image)

	id, err := r.exec.Output(r.bin, args...)
	if err != nil {
		return "", eris.Wrapf(err, "starting %s container %s", r.bin, svc.Name)
	}
	return id, nil
}

func (r *runtime) Stop(name string) error {
	if err := r.exec.RunSilent(r.bin, "stop", name); err != nil {
		return eris.Wrapf(err, "stopping %s container %s", r.bin, name)
	}
	return nil
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		exec:          exec,
	}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		exec:          exec,
	}
}

var defaultExec = &osExecutor{}

// DetectRuntime tries docker first, falls back to podman. Returns an error
// if neither runtime is available.
func DetectRuntime() (Runtime, error) {
	return detectRuntime(defaultExec)
}

func detectRuntime(exec executor) (Runtime, error) {
	docker := newDockerRuntime(exec)
	if docker.Available() {
		return docker, nil
	}

	podman := newPodmanRuntime(exec)
	if podman.Available() {
		return podman, nil
	}

	return nil, eris.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}
