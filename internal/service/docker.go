package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/shaiso/Conveyor/internal/domain"
)

// stopTimeout — таймаут на остановку и удаление контейнера.
const stopTimeout = 30 * time.Second

// DockerProvisioner поднимает сервисы как Docker-контейнеры.
type DockerProvisioner struct {
	client *client.Client
	logger *slog.Logger
}

// NewDockerProvisioner создаёт провижинер поверх Docker Engine API.
// Клиент настраивается из окружения (DOCKER_HOST и т.д.).
func NewDockerProvisioner(logger *slog.Logger) (*DockerProvisioner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerProvisioner{client: cli, logger: logger}, nil
}

// Start создаёт и запускает контейнер сервиса.
func (p *DockerProvisioner) Start(ctx context.Context, decl domain.ServiceDecl, owner string) (Instance, error) {
	if decl.Image == "" {
		return nil, ErrImageRequired
	}

	if err := p.ensureImage(ctx, decl.Image); err != nil {
		return nil, fmt.Errorf("pull image %s: %w", decl.Image, err)
	}

	exposed, bindings, err := portBindings(decl.Ports)
	if err != nil {
		return nil, err
	}

	cfg := &container.Config{
		Image:        decl.Image,
		Env:          bootstrapEnv(decl),
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		AutoRemove:   false,
	}

	// Имя контейнера включает владельца: один сервис на job, без общих
	// экземпляров между параллельными jobs.
	name := fmt.Sprintf("conveyor-%s-%s", decl.Name, owner)

	resp, err := p.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	inst := &dockerInstance{
		client:      p.client,
		logger:      p.logger,
		containerID: resp.ID,
		decl:        decl,
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Контейнер создан, но не стартовал — убираем за собой.
		_ = inst.Stop(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("start container: %w", err)
	}

	p.logger.Debug("service container started",
		"service", decl.Name,
		"image", decl.Image,
		"container_id", resp.ID[:12],
		"owner", owner,
	)

	return inst, nil
}

// ensureImage скачивает образ, если его нет локально.
func (p *DockerProvisioner) ensureImage(ctx context.Context, ref string) error {
	_, _, err := p.client.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return nil
	}

	reader, err := p.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	// Docker требует дочитать поток, иначе pull прерывается.
	_, err = io.Copy(io.Discard, reader)
	return err
}

// bootstrapEnv собирает переменные окружения контейнера сервиса.
func bootstrapEnv(decl domain.ServiceDecl) []string {
	env := make([]string, 0, len(decl.Env)+1)
	for k, v := range decl.Env {
		env = append(env, k+"="+v)
	}
	if decl.RandomizeRootPassword {
		env = append(env, "MYSQL_RANDOM_ROOT_PASSWORD=yes")
	}
	return env
}

// portBindings разбирает пары "host:container" в формат Docker API.
func portBindings(ports []string) (nat.PortSet, nat.PortMap, error) {
	exposed := make(nat.PortSet)
	bindings := make(nat.PortMap)

	for _, p := range ports {
		host, cont, ok := strings.Cut(p, ":")
		if !ok {
			return nil, nil, fmt.Errorf("invalid port mapping %q, want host:container", p)
		}

		port, err := nat.NewPort("tcp", cont)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid container port %q: %w", cont, err)
		}

		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{
			HostIP:   "127.0.0.1",
			HostPort: host,
		})
	}

	return exposed, bindings, nil
}

// dockerInstance — запущенный контейнер сервиса.
type dockerInstance struct {
	client      *client.Client
	logger      *slog.Logger
	containerID string
	decl        domain.ServiceDecl

	stopOnce sync.Once
	stopErr  error
}

// HealthCheck выполняет команду проверки внутри контейнера.
func (i *dockerInstance) HealthCheck(ctx context.Context) error {
	if i.containerID == "" {
		return ErrNotStarted
	}

	execCfg := container.ExecOptions{
		Cmd:          []string{"sh", "-c", i.decl.Health.Cmd},
		AttachStdout: false,
		AttachStderr: false,
	}

	exec, err := i.client.ContainerExecCreate(ctx, i.containerID, execCfg)
	if err != nil {
		return fmt.Errorf("create health exec: %w", err)
	}

	if err := i.client.ContainerExecStart(ctx, exec.ID, container.ExecStartOptions{}); err != nil {
		return fmt.Errorf("start health exec: %w", err)
	}

	// Дожидаемся завершения команды, затем читаем код выхода.
	for {
		inspect, err := i.client.ContainerExecInspect(ctx, exec.ID)
		if err != nil {
			return fmt.Errorf("inspect health exec: %w", err)
		}
		if !inspect.Running {
			if inspect.ExitCode != 0 {
				return fmt.Errorf("%w: exit code %d", ErrHealthCheckFailed, inspect.ExitCode)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// Env возвращает адрес сервиса для шагов job.
// Для сервиса "mysql" с портом "3306:3306":
// SERVICE_MYSQL_HOST=127.0.0.1, SERVICE_MYSQL_PORT=3306.
func (i *dockerInstance) Env() map[string]string {
	prefix := "SERVICE_" + strings.ToUpper(strings.ReplaceAll(i.decl.Name, "-", "_"))

	env := map[string]string{
		prefix + "_HOST": "127.0.0.1",
	}
	if len(i.decl.Ports) > 0 {
		if host, _, ok := strings.Cut(i.decl.Ports[0], ":"); ok {
			env[prefix+"_PORT"] = host
		}
	}
	return env
}

// Stop останавливает и удаляет контейнер. Идемпотентен.
func (i *dockerInstance) Stop(ctx context.Context) error {
	i.stopOnce.Do(func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()

		err := i.client.ContainerRemove(stopCtx, i.containerID, container.RemoveOptions{Force: true})
		if err != nil {
			i.stopErr = fmt.Errorf("remove container: %w", err)
			return
		}

		i.logger.Debug("service container removed",
			"service", i.decl.Name,
			"container_id", i.containerID[:12],
		)
	})
	return i.stopErr
}
