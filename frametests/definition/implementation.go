package definition

import (
	"context"

	"github.com/pitabwire/util"
	"github.com/testcontainers/testcontainers-go"
)

// DefaultImpl carries the container bookkeeping shared by every test resource.
type DefaultImpl struct {
	opts      ContainerOpts
	container testcontainers.Container
}

func NewDefaultImpl(opts ContainerOpts, containerOpts ...ContainerOption) *DefaultImpl {
	opts.Setup(containerOpts...)
	return &DefaultImpl{opts: opts}
}

func (d *DefaultImpl) Name() string {
	return d.opts.ImageName
}

func (d *DefaultImpl) Opts() *ContainerOpts {
	return &d.opts
}

func (d *DefaultImpl) ConfigurationExtend(
	ctx context.Context,
	containerCustomize ...testcontainers.ContainerCustomizer,
) []testcontainers.ContainerCustomizer {
	return d.opts.ConfigurationExtend(ctx, containerCustomize...)
}

func (d *DefaultImpl) Container() testcontainers.Container {
	return d.container
}

func (d *DefaultImpl) SetContainer(container testcontainers.Container) {
	d.container = container
}

func (d *DefaultImpl) Cleanup(ctx context.Context) {
	if d.container != nil {
		if err := d.container.Terminate(ctx); err != nil {
			log := util.Log(ctx)
			log.WithField("image", d.opts.ImageName).WithError(err).Info("Container termination was had and error")
		}
	}
}
