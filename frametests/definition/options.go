package definition

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

type ContainerOpts struct {
	ImageName string
	UserName  string
	Password  string

	EnableLogging  bool
	LoggingTimeout time.Duration
}

func (o *ContainerOpts) Setup(opts ...ContainerOption) {
	WithLoggingTimeout(DefaultLogProductionTimeout)(o)

	for _, opt := range opts {
		opt(o)
	}
}

// ConfigurationExtend appends the customizers every container shares to containerCustomize.
func (o *ContainerOpts) ConfigurationExtend(
	ctx context.Context,
	containerCustomize ...testcontainers.ContainerCustomizer,
) []testcontainers.ContainerCustomizer {
	if o.EnableLogging {
		containerCustomize = append(
			containerCustomize,
			testcontainers.WithLogConsumerConfig(LogConfig(ctx, o.ImageName, o.LoggingTimeout)),
		)
	}
	return containerCustomize
}

// ContainerOption is a type that can be used to configure the container creation request.
type ContainerOption func(req *ContainerOpts)

// WithImageName allows to override the image used for the container.
func WithImageName(imageName string) ContainerOption {
	return func(original *ContainerOpts) {
		original.ImageName = imageName
	}
}

// WithUserName sets the administrative user of the container.
func WithUserName(userName string) ContainerOption {
	return func(original *ContainerOpts) {
		original.UserName = userName
	}
}

// WithPassword sets the administrative password of the container.
func WithPassword(password string) ContainerOption {
	return func(original *ContainerOpts) {
		original.Password = password
	}
}

// WithEnableLogging streams container output to the test logger.
func WithEnableLogging(enableLogging bool) ContainerOption {
	return func(original *ContainerOpts) {
		original.EnableLogging = enableLogging
	}
}

func WithLoggingTimeout(loggingTimeout time.Duration) ContainerOption {
	return func(original *ContainerOpts) {
		original.LoggingTimeout = loggingTimeout
	}
}
